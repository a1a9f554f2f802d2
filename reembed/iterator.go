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

package reembed

import (
	"context"

	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
)

const (
	// DefaultBatchSize is the default number of points to fetch in each batch
	DefaultBatchSize = 100
)

// PointIterator pages through every point of an index.
type PointIterator struct {
	index     storage.VectorIndex
	batchSize int
}

// NewPointIterator creates a new point iterator.
// batchSize: number of points to fetch per page (defaults when <= 0)
func NewPointIterator(index storage.VectorIndex, batchSize int) *PointIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &PointIterator{
		index:     index,
		batchSize: batchSize,
	}
}

// ForEach calls fn with each page of points in scan order.
// Iteration stops on first error from fn or when the index is exhausted.
// Context cancellation is checked between pages.
func (it *PointIterator) ForEach(ctx context.Context, fn func([]*core.Point) error) error {
	var cursor storage.Cursor
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		points, next, err := it.index.Scan(ctx, cursor, it.batchSize)
		if err != nil {
			return err
		}
		if len(points) > 0 {
			if err := fn(points); err != nil {
				return err
			}
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
}
