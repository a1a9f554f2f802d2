package reembed

import (
	"math"

	"github.com/poiesic/ragstream/core"
)

// NormalizeVector scales v to unit length and returns a new vector.
// A zero vector comes back as a zero vector of the same length.
func NormalizeVector(v core.Vector) core.Vector {
	if len(v) == 0 {
		return v
	}

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make(core.Vector, len(v))
	if sum == 0 {
		return out
	}

	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
