package chunker

import (
	"fmt"
	"strings"

	"github.com/poiesic/ragstream/core"
)

const (
	DefaultMaxLength = 430
	DefaultOverlap   = 30
)

// Strategy selects how non-tabular text is split.
type Strategy string

const (
	StrategyFixed     Strategy = "fixed"
	StrategyRecursive Strategy = "recursive"
	StrategyTokens    Strategy = "tokens"
)

// ParseStrategy normalizes a strategy name. Empty input selects StrategyFixed.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StrategyFixed, nil
	case StrategyFixed, StrategyRecursive, StrategyTokens:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Chunker turns document text into ordered chunks.
type Chunker struct {
	maxLength int
	overlap   int
	strategy  Strategy
	encoder   Encoder
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithMaxLength sets the maximum span length. Default is 430.
func WithMaxLength(n int) Option {
	return func(c *Chunker) error {
		c.maxLength = n
		return nil
	}
}

// WithOverlap sets the overlap between consecutive spans. Default is 30.
func WithOverlap(n int) Option {
	return func(c *Chunker) error {
		c.overlap = n
		return nil
	}
}

// WithStrategy sets the policy used for non-tabular text.
func WithStrategy(s Strategy) Option {
	return func(c *Chunker) error {
		st, err := ParseStrategy(string(s))
		if err != nil {
			return err
		}
		c.strategy = st
		return nil
	}
}

// WithEncoder sets the token encoder used by StrategyTokens.
// When unset, the cl100k_base tiktoken encoding is loaded on demand by New.
func WithEncoder(enc Encoder) Option {
	return func(c *Chunker) error {
		c.encoder = enc
		return nil
	}
}

// New creates a Chunker. Parameters are validated once here so Chunk only
// fails on programming errors.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		maxLength: DefaultMaxLength,
		overlap:   DefaultOverlap,
		strategy:  StrategyFixed,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := core.ValidateChunkParams(c.maxLength, c.overlap); err != nil {
		return nil, err
	}
	if c.strategy == StrategyTokens && c.encoder == nil {
		enc, err := NewTiktokenEncoder(DefaultEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to load token encoding: %w", err)
		}
		c.encoder = enc
	}
	return c, nil
}

// MaxLength returns the configured maximum span length.
func (c *Chunker) MaxLength() int { return c.maxLength }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Strategy returns the policy used for non-tabular text.
func (c *Chunker) Strategy() Strategy { return c.strategy }

// Split returns the raw spans for text without wrapping them in chunks.
func (c *Chunker) Split(text string, fileType core.FileType) ([]string, error) {
	if fileType.IsTabular() {
		return Rows(text, c.maxLength, c.overlap)
	}
	switch c.strategy {
	case StrategyRecursive:
		return Recursive(text, c.maxLength, c.overlap)
	case StrategyTokens:
		return Tokens(c.encoder, text, c.maxLength, c.overlap)
	default:
		return Fixed(text, c.maxLength, c.overlap)
	}
}

// Chunk splits text belonging to documentID. Tabular file types use the Rows
// policy; everything else uses the configured strategy.
func (c *Chunker) Chunk(documentID, text string, fileType core.FileType) ([]core.Chunk, error) {
	spans, err := c.Split(text, fileType)
	if err != nil {
		return nil, err
	}
	chunks := make([]core.Chunk, len(spans))
	for i, span := range spans {
		chunks[i] = core.Chunk{
			DocumentID:    documentID,
			Text:          span,
			SequenceIndex: i,
		}
	}
	return chunks, nil
}
