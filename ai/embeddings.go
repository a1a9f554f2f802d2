package ai

import (
	"fmt"

	"github.com/poiesic/ragstream/core"
)

// CheckEmbeddings verifies that a backend returned exactly want vectors of
// length dim. Violations are reported as core.ErrEmbeddingFailure.
func CheckEmbeddings(vectors []core.Vector, want, dim int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: expected %d vectors, got %d", core.ErrEmbeddingFailure, want, len(vectors))
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d: %w: expected %d, got %d",
				core.ErrEmbeddingFailure, i, core.ErrDimensionMismatch, dim, len(v))
		}
	}
	return nil
}
