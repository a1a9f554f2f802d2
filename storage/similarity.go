package storage

import (
	"cmp"
	"math"
	"slices"

	"github.com/poiesic/ragstream/core"
)

// CosineSimilarity returns the cosine of the angle between a and b.
// Zero vectors have similarity 0.
func CosineSimilarity(a, b []float32) float32 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func dotProduct(a, b []float32) float32 {
	var sum float32
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func euclidean(a, b []float32) float32 {
	var sum float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

// Score returns the similarity of a and b under distance. Higher is always
// more similar, so euclidean distance is negated.
func Score(distance core.Distance, a, b []float32) float32 {
	switch distance {
	case core.DistanceDot:
		return dotProduct(a, b)
	case core.DistanceEuclid:
		return -euclidean(a, b)
	default:
		return CosineSimilarity(a, b)
	}
}

// Rank orders results by score, highest first, and keeps at most topK.
// The sort is stable: callers pass results in insertion order so equal
// scores stay in insertion order.
func Rank(results []*core.SearchResult, topK int) []*core.SearchResult {
	slices.SortStableFunc(results, func(a, b *core.SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}
