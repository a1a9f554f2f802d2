package reembed

import (
	"math"
	"testing"

	"github.com/poiesic/ragstream/core"
	"github.com/stretchr/testify/assert"
)

func magnitude(v core.Vector) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestNormalizeVector(t *testing.T) {
	inv := float32(1 / math.Sqrt(2))
	tests := []struct {
		name  string
		input core.Vector
		want  core.Vector
	}{
		{"unit vector unchanged", core.Vector{1, 0, 0}, core.Vector{1, 0, 0}},
		{"scales", core.Vector{3, 4}, core.Vector{0.6, 0.8}},
		{"negative values", core.Vector{-1, 1}, core.Vector{-inv, inv}},
		{"zero vector", core.Vector{0, 0, 0}, core.Vector{0, 0, 0}},
		{"empty", core.Vector{}, core.Vector{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeVector(tt.input)
			assert.InDeltaSlice(t, tt.want, got, 1e-6)
		})
	}
}

func TestNormalizeVector_DoesNotModifyInput(t *testing.T) {
	input := core.Vector{1, 2, 2}
	out := NormalizeVector(input)

	assert.Equal(t, core.Vector{1, 2, 2}, input)
	assert.InDelta(t, 1.0, magnitude(out), 1e-6)
}

func TestNormalizeVector_SmallValues(t *testing.T) {
	out := NormalizeVector(core.Vector{0.001, 0.002, 0.003})
	assert.InDelta(t, 1.0, magnitude(out), 1e-6)
}
