// Package prompt renders retrieval-augmented prompts from a query and its
// retrieved context.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/ragstream/core"
	"github.com/tmc/langchaingo/prompts"
)

// Separator joins context chunks. It is unlikely to occur inside ordinary text.
const Separator = "\n\n---\n\n"

// DefaultTemplate is a Go template with .context and .question variables.
const DefaultTemplate = `You are a helpful assistant. Use the following pieces of context to answer the question at the end.
If you don't know the answer, just say that you don't know. Do not try to make up an answer.

Context:
{{.context}}

Question:
{{.question}}

Helpful Answer:`

var inputVariables = []string{"context", "question"}

// ErrInvalidTemplate is returned when a template cannot render both variables.
var ErrInvalidTemplate = errors.New("invalid prompt template")

// Builder renders prompts. It is immutable and safe for concurrent use.
type Builder struct {
	template prompts.PromptTemplate
}

// Option configures a Builder.
type Option func(*Builder)

// WithTemplate replaces the default template.
func WithTemplate(tmpl string) Option {
	return func(b *Builder) {
		b.template = prompts.NewPromptTemplate(tmpl, inputVariables)
	}
}

// New creates a Builder and checks that its template renders both variables.
func New(opts ...Option) (*Builder, error) {
	b := &Builder{template: prompts.NewPromptTemplate(DefaultTemplate, inputVariables)}
	for _, opt := range opts {
		opt(b)
	}

	const contextMarker, questionMarker = "\x00context\x00", "\x00question\x00"
	out, err := b.template.Format(map[string]any{"context": contextMarker, "question": questionMarker})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	if !strings.Contains(out, contextMarker) || !strings.Contains(out, questionMarker) {
		return nil, fmt.Errorf("%w: template must use .context and .question", ErrInvalidTemplate)
	}
	return b, nil
}

// Build renders the prompt for query over chunks. Identical inputs always
// produce identical output.
func (b *Builder) Build(query string, chunks core.ContextSet) (string, error) {
	return b.template.Format(map[string]any{
		"context":  strings.Join(chunks, Separator),
		"question": query,
	})
}
