package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder  embeddings.Embedder
	dimension int
	logger    *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(config.EmbeddingBatchSize),
	)
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder:  embedder,
		dimension: config.Dimension,
		logger:    slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// Dimension returns the configured embedding length.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// EmbedQuery generates the embedding for a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) (core.Vector, error) {
	e.logger.Debug("generating query embedding", "length", len(text))

	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingFailure, err)
	}
	if err := ai.CheckEmbeddings([]core.Vector{vector}, 1, e.dimension); err != nil {
		return nil, err
	}
	return vector, nil
}

// EmbedBatch generates vector embeddings for multiple texts, preserving order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]core.Vector, error) {
	if len(texts) == 0 {
		return []core.Vector{}, nil
	}
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingFailure, err)
	}
	if err := ai.CheckEmbeddings(vectors, len(texts), e.dimension); err != nil {
		e.logger.Error("embedding backend returned malformed output", "err", err)
		return nil, err
	}
	return vectors, nil
}
