package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/poiesic/ragstream/ai/mock"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
	"github.com/poiesic/ragstream/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCollection = core.CollectionConfig{Name: "test", Dimension: 3, Distance: core.DistanceCosine}

func newTestIndex(t *testing.T, points ...*core.Point) storage.VectorIndex {
	t.Helper()
	idx, err := badger.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	ctx := context.Background()
	require.NoError(t, idx.Init(ctx, testCollection))
	if len(points) > 0 {
		require.NoError(t, idx.Upsert(ctx, points...))
	}
	return idx
}

func newPoint(doc, text string, seq int, vector ...float32) *core.Point {
	return &core.Point{
		ID:      core.NewPointID(),
		Vector:  vector,
		Payload: core.Payload{DocumentID: doc, ChunkText: text, SequenceIndex: seq},
	}
}

func fixedEmbedder(vector ...float32) *mock.MockEmbedder {
	e := mock.NewMockEmbedderWithDimension(len(vector))
	e.EmbedQueryFunc = func(context.Context, string) (core.Vector, error) {
		return vector, nil
	}
	return e
}

type failingIndex struct {
	storage.VectorIndex
	err error
}

func (f *failingIndex) Search(context.Context, core.Vector, int, *storage.Filter) ([]*core.SearchResult, error) {
	return nil, f.err
}

func TestNewSearcher(t *testing.T) {
	idx := newTestIndex(t)
	embedder := mock.NewMockEmbedder()

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(idx, embedder)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(idx, embedder, WithLogger(nil))
		require.NoError(t, err)
		assert.Equal(t, slog.Default(), searcher.logger)
	})

	t.Run("nil index", func(t *testing.T) {
		_, err := NewSearcher(nil, embedder)
		assert.Equal(t, ErrIndexRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(idx, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestFindSimilar_EmptyIndex(t *testing.T) {
	searcher, err := NewSearcher(newTestIndex(t), fixedEmbedder(1, 0, 0))
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "anything", 3, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilar_RanksBySimilarity(t *testing.T) {
	idx := newTestIndex(t,
		newPoint("d1", "artificial intelligence", 0, 0.9, 0.1, 0.0),
		newPoint("d1", "cooking recipes", 1, 0.1, 0.1, 0.8),
		newPoint("d1", "machine learning", 2, 0.85, 0.15, 0.0),
	)
	searcher, err := NewSearcher(idx, fixedEmbedder(0.88, 0.12, 0.0))
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "ai", 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "artificial intelligence", results[0].Point.Payload.ChunkText)
	assert.Equal(t, "machine learning", results[1].Point.Payload.ChunkText)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestFindSimilar_InvalidInput(t *testing.T) {
	embedder := fixedEmbedder(1, 0, 0)
	searcher, err := NewSearcher(newTestIndex(t), embedder)
	require.NoError(t, err)

	_, err = searcher.FindSimilar(context.Background(), "   ", 3, nil)
	assert.ErrorIs(t, err, core.ErrEmptyQuery)

	_, err = searcher.FindSimilar(context.Background(), "query", 0, nil)
	assert.ErrorIs(t, err, core.ErrInvalidTopK)

	assert.Zero(t, embedder.CallCount(), "nothing is embedded for invalid input")
}

func TestFindSimilar_Filter(t *testing.T) {
	idx := newTestIndex(t,
		newPoint("d1", "one", 0, 1, 0, 0),
		newPoint("d2", "two", 0, 1, 0, 0),
		newPoint("d2", "three", 1, 0, 1, 0),
	)
	searcher, err := NewSearcher(idx, fixedEmbedder(1, 0, 0))
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "q", 10, &storage.Filter{DocumentID: "d2"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "d2", r.Point.Payload.DocumentID)
	}
}

func TestFindSimilar_MinScore(t *testing.T) {
	idx := newTestIndex(t,
		newPoint("d1", "close", 0, 1, 0, 0),
		newPoint("d1", "orthogonal", 1, 0, 1, 0),
	)
	searcher, err := NewSearcher(idx, fixedEmbedder(1, 0, 0), WithMinScore(0.5))
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "q", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "close", results[0].Point.Payload.ChunkText)
}

func TestFindSimilar_Errors(t *testing.T) {
	t.Run("embedding failure", func(t *testing.T) {
		embedder := mock.NewMockEmbedderWithDimension(3)
		embedder.EmbedQueryFunc = func(context.Context, string) (core.Vector, error) {
			return nil, fmt.Errorf("%w: model offline", core.ErrEmbeddingFailure)
		}
		searcher, err := NewSearcher(newTestIndex(t), embedder)
		require.NoError(t, err)

		_, err = searcher.FindSimilar(context.Background(), "q", 3, nil)
		assert.ErrorIs(t, err, core.ErrEmbeddingFailure)
	})

	t.Run("index unavailable is not an empty result", func(t *testing.T) {
		idx := &failingIndex{VectorIndex: newTestIndex(t), err: fmt.Errorf("%w: connection refused", core.ErrIndexUnavailable)}
		searcher, err := NewSearcher(idx, fixedEmbedder(1, 0, 0))
		require.NoError(t, err)

		results, err := searcher.FindSimilar(context.Background(), "q", 3, nil)
		assert.ErrorIs(t, err, core.ErrIndexUnavailable)
		assert.Nil(t, results)
	})
}

func TestRetrieve(t *testing.T) {
	idx := newTestIndex(t,
		newPoint("d1", "first", 0, 1, 0, 0),
		newPoint("d1", "second", 1, 0.9, 0.1, 0),
		newPoint("d1", "third", 2, 0.8, 0.2, 0),
		newPoint("d1", "fourth", 3, 0.1, 0.9, 0),
	)
	searcher, err := NewSearcher(idx, fixedEmbedder(1, 0, 0))
	require.NoError(t, err)

	t.Run("default top k", func(t *testing.T) {
		results, chunks, err := searcher.Retrieve(context.Background(), core.Query{Text: "q"})
		require.NoError(t, err)
		assert.Len(t, results, DefaultTopK)
		assert.Equal(t, core.ContextSet{"first", "second", "third"}, chunks)
	})

	t.Run("document filter", func(t *testing.T) {
		_, chunks, err := searcher.Retrieve(context.Background(), core.Query{Text: "q", TopK: 5, DocumentID: "other"})
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})
}

func TestFindSimilarWithMonitor(t *testing.T) {
	idx := newTestIndex(t,
		newPoint("d1", "The refund window is 30 days.", 0, 1, 0, 0),
		newPoint("d1", "Shipping is free.", 1, 0.7, 0.3, 0),
	)
	searcher, err := NewSearcher(idx, fixedEmbedder(1, 0, 0))
	require.NoError(t, err)

	monitor := &testMonitor{}
	results, err := searcher.FindSimilarWithMonitor(context.Background(), "what is the refund window?", 2, nil, monitor)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "what is the refund window?", monitor.query)
	assert.Equal(t, core.Vector{1, 0, 0}, monitor.embedding)
	assert.Len(t, monitor.indexResults, 2)
	assert.Equal(t, []bool{true, false}, monitor.verbatim)
	assert.True(t, monitor.finishCalled)
}

func TestFindSimilarWithMonitor_NotFinishedOnError(t *testing.T) {
	idx := &failingIndex{VectorIndex: newTestIndex(t), err: errors.New("boom")}
	searcher, err := NewSearcher(idx, fixedEmbedder(1, 0, 0))
	require.NoError(t, err)

	monitor := &testMonitor{}
	_, err = searcher.FindSimilarWithMonitor(context.Background(), "q", 2, nil, monitor)
	require.Error(t, err)
	assert.Equal(t, "q", monitor.query)
	assert.False(t, monitor.finishCalled)
}

func TestContainsAllTerms(t *testing.T) {
	tests := []struct {
		chunk, query string
		want         bool
	}{
		{"The refund window is 30 days.", "refund window", true},
		{"The refund window is 30 days.", "What is the Refund window?", true},
		{"The refund window is 30 days.", "refund policy", false},
		{"anything at all", "the a an", false},
		{"", "refund", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, containsAllTerms(tt.chunk, tt.query), "%q in %q", tt.query, tt.chunk)
	}
}

// testMonitor records what the searcher reports
type testMonitor struct {
	query        string
	embedding    core.Vector
	indexResults []*core.SearchResult
	verbatim     []bool
	finishCalled bool
}

func (m *testMonitor) Start(query string) {
	m.query = query
}

func (m *testMonitor) AfterEmbedding(vector core.Vector) {
	m.embedding = vector
}

func (m *testMonitor) AfterIndexSearch(results []*core.SearchResult) {
	m.indexResults = results
}

func (m *testMonitor) Hit(_ *core.SearchResult, verbatim bool) {
	m.verbatim = append(m.verbatim, verbatim)
}

func (m *testMonitor) Finish(results []*core.SearchResult) {
	m.finishCalled = true
}
