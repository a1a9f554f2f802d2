package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/retry"
)

// embedAll embeds texts in sub-batches on the worker pool and reassembles
// the vectors in input order. The first failing sub-batch cancels the rest
// and fails the whole call.
func (p *Pipeline) embedAll(ctx context.Context, texts []string) ([]core.Vector, error) {
	logger := p.logger.With("stage", "embed")
	vectors := make([]core.Vector, len(texts))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	batches := 0
	for start := 0; start < len(texts); start += p.embedBatchSize {
		end := min(start+p.embedBatchSize, len(texts))
		batches++
		wg.Add(1)
		err := p.embeddingPool.Submit(func() {
			defer wg.Done()
			out, err := p.embedBatch(ctx, texts[start:end])
			if err != nil {
				fail(err)
				return
			}
			copy(vectors[start:end], out)
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("%w: failed to schedule batch: %w", core.ErrEmbeddingFailure, err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		logger.Error("error generating embeddings", "chunks", len(texts), "batches", batches, "err", firstErr)
		return nil, firstErr
	}
	logger.Debug("generated embeddings", "chunks", len(texts), "batches", batches)
	return vectors, nil
}

// embedBatch embeds one sub-batch with rate limiting and retries. Malformed
// output is not retried.
func (p *Pipeline) embedBatch(ctx context.Context, texts []string) ([]core.Vector, error) {
	var out []core.Vector
	err := retry.WithBackoff(ctx, func() error {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return retry.Permanent(err)
			}
		}
		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if errors.Is(err, core.ErrDimensionMismatch) {
				return retry.Permanent(err)
			}
			return err
		}
		if err := ai.CheckEmbeddings(vectors, len(texts), p.embedder.Dimension()); err != nil {
			return retry.Permanent(err)
		}
		out = vectors
		return nil
	}, p.maxAttempts, p.retryDelay)
	if err != nil {
		if errors.Is(err, core.ErrEmbeddingFailure) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingFailure, err)
	}
	return out, nil
}
