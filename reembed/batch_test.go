package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/ragstream/ai/mock"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unnormalizedEmbedder returns (1, 2, 2) for every text, magnitude 3.
func unnormalizedEmbedder() *mock.MockEmbedder {
	e := mock.NewMockEmbedderWithDimension(3)
	e.EmbedBatchFunc = func(_ context.Context, texts []string) ([]core.Vector, error) {
		out := make([]core.Vector, len(texts))
		for i := range texts {
			out[i] = core.Vector{1, 2, 2}
		}
		return out, nil
	}
	return e
}

func scanAll(t *testing.T, idx storage.VectorIndex) []*core.Point {
	t.Helper()
	var all []*core.Point
	err := NewPointIterator(idx, 50).ForEach(context.Background(), func(points []*core.Point) error {
		all = append(all, points...)
		return nil
	})
	require.NoError(t, err)
	return all
}

func TestBatchProcessor_Process(t *testing.T) {
	source := setupIndex(t, "source", 4, 2)
	target := setupIndex(t, "target", 3, 0)
	points := scanAll(t, source)

	processor := NewBatchProcessor(target, unnormalizedEmbedder(), 3, 10*time.Millisecond, true)
	require.NoError(t, processor.Process(context.Background(), points))

	copied := scanAll(t, target)
	require.Len(t, copied, 2)
	for i, p := range copied {
		assert.Equal(t, points[i].ID, p.ID, "IDs are preserved")
		assert.Equal(t, points[i].Payload.ChunkText, p.Payload.ChunkText)
		assert.InDelta(t, 1.0, magnitude(p.Vector), 1e-5, "vector is normalized")
	}
}

func TestBatchProcessor_WithoutNormalization(t *testing.T) {
	target := setupIndex(t, "target", 3, 0)
	points := scanAll(t, setupIndex(t, "source", 4, 1))

	processor := NewBatchProcessor(target, unnormalizedEmbedder(), 1, time.Millisecond, false)
	require.NoError(t, processor.Process(context.Background(), points))

	copied := scanAll(t, target)
	require.Len(t, copied, 1)
	assert.Equal(t, core.Vector{1, 2, 2}, copied[0].Vector)
}

func TestBatchProcessor_Empty(t *testing.T) {
	embedder := unnormalizedEmbedder()
	processor := NewBatchProcessor(setupIndex(t, "target", 3, 0), embedder, 3, time.Millisecond, true)

	require.NoError(t, processor.Process(context.Background(), nil))
	assert.Zero(t, embedder.CallCount())
}

func TestBatchProcessor_RetriesTransientFailures(t *testing.T) {
	target := setupIndex(t, "target", 3, 0)
	points := scanAll(t, setupIndex(t, "source", 3, 2))

	embedder := unnormalizedEmbedder()
	fallback := embedder.EmbedBatchFunc
	calls := 0
	embedder.EmbedBatchFunc = func(ctx context.Context, texts []string) ([]core.Vector, error) {
		calls++
		if calls < 3 {
			return nil, fmt.Errorf("%w: timeout", core.ErrEmbeddingFailure)
		}
		return fallback(ctx, texts)
	}

	processor := NewBatchProcessor(target, embedder, 3, time.Millisecond, true)
	require.NoError(t, processor.Process(context.Background(), points))
	assert.Equal(t, 3, calls)
	assert.Len(t, scanAll(t, target), 2)
}

func TestBatchProcessor_GivesUp(t *testing.T) {
	target := setupIndex(t, "target", 3, 0)
	points := scanAll(t, setupIndex(t, "source", 3, 2))

	embedder := mock.NewMockEmbedderWithDimension(3)
	embedder.EmbedBatchFunc = func(context.Context, []string) ([]core.Vector, error) {
		return nil, errors.New("service unavailable")
	}

	processor := NewBatchProcessor(target, embedder, 2, time.Millisecond, true)
	err := processor.Process(context.Background(), points)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, 2, embedder.CallCount())
	assert.Empty(t, scanAll(t, target), "nothing is written")
}

func TestBatchProcessor_DimensionMismatchIsNotRetried(t *testing.T) {
	target := setupIndex(t, "target", 3, 0)
	points := scanAll(t, setupIndex(t, "source", 3, 1))

	embedder := mock.NewMockEmbedderWithDimension(3)
	embedder.EmbedBatchFunc = func(context.Context, []string) ([]core.Vector, error) {
		return nil, fmt.Errorf("%w: got 5", core.ErrDimensionMismatch)
	}

	processor := NewBatchProcessor(target, embedder, 5, time.Millisecond, true)
	err := processor.Process(context.Background(), points)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	assert.Equal(t, 1, embedder.CallCount())
}

func TestBatchProcessor_CountMismatch(t *testing.T) {
	target := setupIndex(t, "target", 3, 0)
	points := scanAll(t, setupIndex(t, "source", 3, 2))

	embedder := mock.NewMockEmbedderWithDimension(3)
	embedder.EmbedBatchFunc = func(context.Context, []string) ([]core.Vector, error) {
		return []core.Vector{{1, 0, 0}}, nil
	}

	processor := NewBatchProcessor(target, embedder, 1, time.Millisecond, true)
	err := processor.Process(context.Background(), points)
	assert.ErrorIs(t, err, core.ErrEmbeddingFailure)
}
