package ai

import (
	"context"

	"github.com/poiesic/ragstream/core"
)

// Embedder maps text to fixed-dimension vectors.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedQuery generates the embedding for a single query string.
	EmbedQuery(ctx context.Context, text string) (core.Vector, error)

	// EmbedBatch generates one embedding per input text, in input order.
	// A failure aborts the whole batch and no vectors are returned.
	EmbedBatch(ctx context.Context, texts []string) ([]core.Vector, error)

	// Dimension returns the length of every vector this embedder produces.
	Dimension() int
}

// Generator produces answer text for a prompt, incrementally.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate streams fragments of the answer to emit in arrival order.
	// It returns when generation finishes, fails, or ctx is cancelled.
	// An error returned by emit aborts generation and is returned unchanged.
	Generate(ctx context.Context, prompt string, emit func(fragment string) error) error
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generators returns the generation backends keyed by provider name.
	Generators() map[string]Generator

	// Close releases resources held by the provider and its services.
	Close() error
}
