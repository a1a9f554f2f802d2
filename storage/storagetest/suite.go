// Package storagetest holds the behavioral test suite every storage.VectorIndex
// implementation must pass.
package storagetest

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Collection is the configuration used by the suite.
var Collection = core.CollectionConfig{Name: "suite", Dimension: 3, Distance: core.DistanceCosine}

// Opener returns a fresh, uninitialized index. It should register cleanup with t.
type Opener func(t *testing.T) storage.VectorIndex

// NewPoint builds a point with a random ID.
func NewPoint(doc, text string, seq int, vector ...float32) *core.Point {
	return &core.Point{
		ID:     core.NewPointID(),
		Vector: vector,
		Payload: core.Payload{
			DocumentID:    doc,
			ChunkText:     text,
			SequenceIndex: seq,
		},
	}
}

// Run executes the suite against indexes produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("not ready before init", func(t *testing.T) { testNotReady(t, open(t)) })
	t.Run("init is idempotent", func(t *testing.T) { testInitIdempotent(t, open(t)) })
	t.Run("search orders by similarity", func(t *testing.T) { testSearchOrder(t, open(t)) })
	t.Run("ties keep insertion order", func(t *testing.T) { testTies(t, open(t)) })
	t.Run("upsert is atomic", func(t *testing.T) { testUpsertAtomic(t, open(t)) })
	t.Run("upsert replaces by id", func(t *testing.T) { testReplace(t, open(t)) })
	t.Run("document filter", func(t *testing.T) { testFilter(t, open(t)) })
	t.Run("delete document", func(t *testing.T) { testDelete(t, open(t)) })
	t.Run("scan pages in insertion order", func(t *testing.T) { testScan(t, open(t)) })
	t.Run("collections", func(t *testing.T) { testCollections(t, open(t)) })
	t.Run("each point finds itself", func(t *testing.T) { testRoundTrip(t, open(t)) })
	t.Run("top k of all points", func(t *testing.T) { testTopKAll(t, open(t)) })
}

func ready(t *testing.T, idx storage.VectorIndex) context.Context {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, idx.Init(ctx, Collection))
	return ctx
}

func texts(results []*core.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Point.Payload.ChunkText
	}
	return out
}

func testNotReady(t *testing.T, idx storage.VectorIndex) {
	ctx := context.Background()

	err := idx.Upsert(ctx, NewPoint("d", "t", 0, 1, 0, 0))
	assert.ErrorIs(t, err, core.ErrIndexNotReady)

	_, err = idx.Search(ctx, core.Vector{1, 0, 0}, 1, nil)
	assert.ErrorIs(t, err, core.ErrIndexNotReady)

	_, err = idx.Count(ctx)
	assert.ErrorIs(t, err, core.ErrIndexNotReady)

	_, err = idx.DeleteDocument(ctx, "d")
	assert.ErrorIs(t, err, core.ErrIndexNotReady)

	_, _, err = idx.Scan(ctx, "", 10)
	assert.ErrorIs(t, err, core.ErrIndexNotReady)

	_, err = idx.Config()
	assert.ErrorIs(t, err, core.ErrIndexNotReady)

	_, err = idx.Collections(ctx)
	assert.NoError(t, err)
}

func testInitIdempotent(t *testing.T, idx storage.VectorIndex) {
	ctx := ready(t, idx)
	require.NoError(t, idx.Upsert(ctx, NewPoint("d", "kept", 0, 1, 0, 0)))

	require.NoError(t, idx.Init(ctx, Collection))

	cfg, err := idx.Config()
	require.NoError(t, err)
	assert.Equal(t, Collection, cfg)

	conflicting := Collection
	conflicting.Dimension = 4
	err = idx.Init(ctx, conflicting)
	assert.ErrorIs(t, err, core.ErrConfigConflict)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "a conflicting init must not drop data")

	err = idx.Init(ctx, core.CollectionConfig{Name: "bad name!", Dimension: 3})
	assert.ErrorIs(t, err, core.ErrInvalidCollection)
}

func testSearchOrder(t *testing.T, idx storage.VectorIndex) {
	ctx := ready(t, idx)

	results, err := idx.Search(ctx, core.Vector{1, 0, 0}, 3, nil)
	require.NoError(t, err)
	assert.Empty(t, results, "an empty collection is a miss, not an error")

	require.NoError(t, idx.Upsert(ctx,
		NewPoint("d", "orthogonal", 0, 0, 1, 0),
		NewPoint("d", "exact", 1, 1, 0, 0),
		NewPoint("d", "close", 2, 0.8, 0.6, 0),
	))

	results, err = idx.Search(ctx, core.Vector{1, 0, 0}, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"exact", "close", "orthogonal"}, texts(results))
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.InDelta(t, 0.8, results[1].Score, 1e-5)
	assert.InDelta(t, 0.0, results[2].Score, 1e-5)

	results, err = idx.Search(ctx, core.Vector{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"exact", "close"}, texts(results))

	p := results[0].Point
	assert.Equal(t, "d", p.Payload.DocumentID)
	assert.Equal(t, 1, p.Payload.SequenceIndex)
	assert.False(t, p.Payload.InsertedAt.IsZero())
	assert.Len(t, p.Vector, 3)

	_, err = idx.Search(ctx, core.Vector{1, 0, 0}, 0, nil)
	assert.ErrorIs(t, err, core.ErrInvalidTopK)

	_, err = idx.Search(ctx, core.Vector{1, 0}, 1, nil)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func testTies(t *testing.T, idx storage.VectorIndex) {
	ctx := ready(t, idx)

	for _, name := range []string{"first", "second", "third", "fourth"} {
		require.NoError(t, idx.Upsert(ctx, NewPoint("d", name, 0, 0, 0, 1)))
	}

	results, err := idx.Search(ctx, core.Vector{0, 0, 1}, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, texts(results))
}

func testUpsertAtomic(t *testing.T, idx storage.VectorIndex) {
	ctx := ready(t, idx)

	err := idx.Upsert(ctx,
		NewPoint("d", "good", 0, 1, 0, 0),
		NewPoint("d", "bad", 1, 1, 0),
	)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, idx.Upsert(ctx))
}

func testReplace(t *testing.T, idx storage.VectorIndex) {
	ctx := ready(t, idx)

	a := NewPoint("d", "a", 0, 0, 1, 0)
	b := NewPoint("d", "b", 1, 0, 1, 0)
	c := NewPoint("d", "c", 2, 0, 1, 0)
	require.NoError(t, idx.Upsert(ctx, a, b, c))

	replaced := *a
	replaced.Payload.ChunkText = "a2"
	require.NoError(t, idx.Upsert(ctx, &replaced))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := idx.Search(ctx, core.Vector{0, 1, 0}, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "b", "c"}, texts(results), "a replaced point keeps its position")
}

func testFilter(t *testing.T, idx storage.VectorIndex) {
	ctx := ready(t, idx)

	require.NoError(t, idx.Upsert(ctx,
		NewPoint("doc-a", "a-best", 0, 1, 0, 0),
		NewPoint("doc-b", "b-best", 0, 1, 0, 0),
		NewPoint("doc-b", "b-other", 1, 0, 1, 0),
	))

	results, err := idx.Search(ctx, core.Vector{1, 0, 0}, 5, &storage.Filter{DocumentID: "doc-b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b-best", "b-other"}, texts(results))

	results, err = idx.Search(ctx, core.Vector{1, 0, 0}, 5, &storage.Filter{DocumentID: "missing"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func testDelete(t *testing.T, idx storage.VectorIndex) {
	ctx := ready(t, idx)

	require.NoError(t, idx.Upsert(ctx,
		NewPoint("keep", "k", 0, 1, 0, 0),
		NewPoint("drop", "d1", 0, 1, 0, 0),
		NewPoint("drop", "d2", 1, 1, 0, 0),
	))

	removed, err := idx.DeleteDocument(ctx, "drop")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = idx.DeleteDocument(ctx, "drop")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	results, err := idx.Search(ctx, core.Vector{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, texts(results))
}

func testScan(t *testing.T, idx storage.VectorIndex) {
	ctx := ready(t, idx)

	var want []string
	for i, name := range []string{"p0", "p1", "p2", "p3", "p4"} {
		require.NoError(t, idx.Upsert(ctx, NewPoint("d", name, i, float32(i+1), 1, 0)))
		want = append(want, name)
	}

	var (
		got    []string
		pages  int
		cursor storage.Cursor
	)
	for {
		points, next, err := idx.Scan(ctx, cursor, 2)
		require.NoError(t, err)
		pages++
		for _, p := range points {
			got = append(got, p.Payload.ChunkText)
		}
		if next == "" {
			break
		}
		cursor = next
		require.Less(t, pages, 10)
	}
	assert.Equal(t, want, got)
	assert.Equal(t, 3, pages)
}

func testCollections(t *testing.T, idx storage.VectorIndex) {
	ctx := ready(t, idx)

	names, err := idx.Collections(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, Collection.Name)
}

// spread returns n distinct directions in three dimensions.
func spread(n int) []core.Vector {
	out := make([]core.Vector, n)
	for i := range out {
		angle := float64(i) * math.Pi / float64(2*n)
		out[i] = core.Vector{float32(math.Cos(angle)), float32(math.Sin(angle)), float32(i%3) * 0.05}
	}
	return out
}

func testRoundTrip(t *testing.T, idx storage.VectorIndex) {
	ctx := ready(t, idx)

	vectors := spread(6)
	points := make([]*core.Point, len(vectors))
	for i, v := range vectors {
		points[i] = NewPoint("d", fmt.Sprintf("chunk-%d", i), i, v...)
	}
	require.NoError(t, idx.Upsert(ctx, points...))

	for i, p := range points {
		results, err := idx.Search(ctx, p.Vector, 1, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, p.ID, results[0].Point.ID, "chunk %d", i)
		assert.Equal(t, p.Payload.ChunkText, results[0].Point.Payload.ChunkText)
		assert.Equal(t, p.Payload.DocumentID, results[0].Point.Payload.DocumentID)
		assert.Equal(t, p.Payload.SequenceIndex, results[0].Point.Payload.SequenceIndex)
	}
}

func testTopKAll(t *testing.T, idx storage.VectorIndex) {
	ctx := ready(t, idx)

	vectors := spread(7)
	for i, v := range vectors {
		require.NoError(t, idx.Upsert(ctx, NewPoint("d", fmt.Sprintf("p%d", i), i, v...)))
	}

	results, err := idx.Search(ctx, core.Vector{1, 0, 0}, len(vectors), nil)
	require.NoError(t, err)
	require.Len(t, results, len(vectors))

	seen := make(map[core.PointID]bool)
	for i, r := range results {
		assert.False(t, seen[r.Point.ID], "duplicate point %d", r.Point.ID)
		seen[r.Point.ID] = true
		if i > 0 {
			assert.LessOrEqual(t, r.Score, results[i-1].Score)
		}
	}
	assert.Len(t, seen, len(vectors))
}
