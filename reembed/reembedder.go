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
	"fmt"
	"io"
	"time"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of points to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of points)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Normalize scales every new vector to unit length
	Normalize bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		Normalize:      true,
	}
}

// Reembedder copies every point of a source collection into a target
// collection with fresh embeddings.
type Reembedder struct {
	source    storage.VectorIndex
	target    storage.VectorIndex
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *PointIterator
}

// NewReembedder creates a new reembedder. Both indexes must already be
// initialized and the target dimension must match the embedder's.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(source, target storage.VectorIndex, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if target == nil {
		return nil, ErrTargetRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	if _, err := source.Config(); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	targetCfg, err := target.Config()
	if err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}
	if targetCfg.Dimension != embedder.Dimension() {
		return nil, fmt.Errorf("%w: target collection %q has dimension %d, embedder produces %d",
			core.ErrDimensionMismatch, targetCfg.Name, targetCfg.Dimension, embedder.Dimension())
	}

	return &Reembedder{
		source:    source,
		target:    target,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(target, embedder, config.MaxRetries, config.RetryDelay, config.Normalize),
		iterator:  NewPointIterator(source, config.BatchSize),
	}, nil
}

// Run re-embeds every point in the source collection.
// Progress is reported to the configured writer. It returns the number of
// points written to the target.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	totalPoints, err := r.source.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}

	if totalPoints == 0 {
		fmt.Fprintf(r.progress, "No points found in collection (0 points)\n")
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d points (batch size: %d)\n",
		totalPoints, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, totalPoints, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, func(points []*core.Point) error {
		if err := r.processor.Process(ctx, points); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += len(points)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return processed, err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d points in %v (%.1f points/sec)\n",
		processed, elapsed.Round(time.Second), float64(processed)/elapsed.Seconds())

	return processed, nil
}
