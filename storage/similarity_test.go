package storage

import (
	"testing"

	"github.com/poiesic/ragstream/core"
	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 0}, []float32{5, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}

func TestScore(t *testing.T) {
	a := []float32{1, 2}
	b := []float32{3, 4}

	assert.InDelta(t, 11, Score(core.DistanceDot, a, b), 1e-6)
	assert.InDelta(t, -2.828427, Score(core.DistanceEuclid, a, b), 1e-5)
	assert.InDelta(t, CosineSimilarity(a, b), Score(core.DistanceCosine, a, b), 1e-6)
}

func TestRank(t *testing.T) {
	mk := func(id core.PointID, score float32) *core.SearchResult {
		return &core.SearchResult{Point: &core.Point{ID: id}, Score: score}
	}
	results := []*core.SearchResult{
		mk(1, 0.5),
		mk(2, 0.9),
		mk(3, 0.5),
		mk(4, 0.1),
		mk(5, 0.5),
	}

	ranked := Rank(results, 4)
	ids := make([]core.PointID, len(ranked))
	for i, r := range ranked {
		ids[i] = r.Point.ID
	}
	assert.Equal(t, []core.PointID{2, 1, 3, 5}, ids)

	assert.Empty(t, Rank(nil, 3))
}

func TestFilter_Match(t *testing.T) {
	p := core.Payload{DocumentID: "a"}

	var nilFilter *Filter
	assert.True(t, nilFilter.Match(p))
	assert.True(t, (&Filter{}).Match(p))
	assert.True(t, (&Filter{DocumentID: "a"}).Match(p))
	assert.False(t, (&Filter{DocumentID: "b"}).Match(p))
}
