package reembed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/retry"
	"github.com/poiesic/ragstream/storage"
)

// BatchProcessor re-embeds batches of points into a target index.
type BatchProcessor struct {
	target         storage.VectorIndex
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	normalize      bool
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding and upsert call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(target storage.VectorIndex, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration, normalize bool) *BatchProcessor {
	return &BatchProcessor{
		target:         target,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		normalize:      normalize,
	}
}

// Process embeds the chunk text of each point and upserts the results with
// the original IDs and payloads in a single call.
func (bp *BatchProcessor) Process(ctx context.Context, points []*core.Point) error {
	if len(points) == 0 {
		return nil
	}

	texts := make([]string, len(points))
	for i, p := range points {
		texts[i] = p.Payload.ChunkText
	}

	var embeddings []core.Vector
	err := retry.WithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedBatch(ctx, texts)
		if errors.Is(err, core.ErrDimensionMismatch) {
			return retry.Permanent(err)
		}
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(points) {
		return fmt.Errorf("%w: expected %d embeddings, got %d", core.ErrEmbeddingFailure, len(points), len(embeddings))
	}

	updated := make([]*core.Point, len(points))
	for i, p := range points {
		vector := embeddings[i]
		if bp.normalize {
			vector = NormalizeVector(vector)
		}
		updated[i] = &core.Point{ID: p.ID, Vector: vector, Payload: p.Payload}
	}

	err = retry.WithBackoff(ctx, func() error {
		err := bp.target.Upsert(ctx, updated...)
		if err != nil && !errors.Is(err, core.ErrIndexUnavailable) {
			return retry.Permanent(err)
		}
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}
