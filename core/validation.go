// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"regexp"
)

var collectionNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateCollectionConfig validates a collection layout.
//
// Validation rules:
//   - Name must be non-empty and contain only letters, digits, '_' or '-'
//   - Dimension must be positive
//   - Distance must be one of cosine, dot or euclid
func ValidateCollectionConfig(cfg CollectionConfig) error {
	if !collectionNameRe.MatchString(cfg.Name) {
		return fmt.Errorf("%w: bad name %q", ErrInvalidCollection, cfg.Name)
	}
	if cfg.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidCollection, cfg.Dimension)
	}
	switch cfg.Distance {
	case DistanceCosine, DistanceDot, DistanceEuclid:
	default:
		return fmt.Errorf("%w: unknown distance %q", ErrInvalidCollection, cfg.Distance)
	}
	return nil
}

// ValidatePoint checks a point against the collection dimension.
func ValidatePoint(p *Point, dimension int) error {
	if p == nil {
		return fmt.Errorf("%w: point is nil", ErrInvalidPoint)
	}
	if len(p.Vector) != dimension {
		return fmt.Errorf("%w: %w: expected %d, got %d", ErrInvalidPoint, ErrDimensionMismatch, dimension, len(p.Vector))
	}
	return nil
}

// ValidateChunkParams enforces maxLength > 0 and 0 <= overlap < maxLength.
func ValidateChunkParams(maxLength, overlap int) error {
	if maxLength <= 0 {
		return fmt.Errorf("%w: max length must be positive, got %d", ErrInvalidChunkParams, maxLength)
	}
	if overlap < 0 || overlap >= maxLength {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidChunkParams, maxLength, overlap)
	}
	return nil
}

// ValidateVector checks a vector's length.
func ValidateVector(v Vector, dimension int) error {
	if len(v) != dimension {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dimension, len(v))
	}
	return nil
}
