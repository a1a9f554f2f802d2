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

// Package ragstream wires configuration, a vector index, an AI provider and
// the ingestion/query pipeline into a single Engine.
package ragstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/ai/openai"
	"github.com/poiesic/ragstream/chunker"
	"github.com/poiesic/ragstream/config"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/pipeline"
	"github.com/poiesic/ragstream/reembed"
	"github.com/poiesic/ragstream/server"
	"github.com/poiesic/ragstream/storage"
	"github.com/poiesic/ragstream/storage/backends"
	"github.com/poiesic/ragstream/stream"
)

type Engine struct {
	config   *config.Config
	index    storage.VectorIndex
	provider ai.AIProvider
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	index        storage.VectorIndex
	provider     ai.AIProvider
	pipelineOpts []pipeline.Option
	logger       *slog.Logger
}

// WithIndex uses an already opened index instead of the configured backend.
// The engine takes ownership and closes it.
func WithIndex(idx storage.VectorIndex) EngineOption {
	return func(o *engineOptions) {
		o.index = idx
	}
}

// WithProvider uses the given AI provider instead of building one from the
// configuration. The engine takes ownership and closes it.
func WithProvider(p ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = p
	}
}

// WithPipelineOptions appends options applied after the configured ones.
func WithPipelineOptions(opts ...pipeline.Option) EngineOption {
	return func(o *engineOptions) {
		o.pipelineOpts = append(o.pipelineOpts, opts...)
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// NewEngine opens the index, binds the configured collection, builds the AI
// provider and the pipeline. A nil cfg selects config.DefaultConfig().
// Everything opened so far is closed again when a later step fails.
func NewEngine(ctx context.Context, cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	options := &engineOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	collection, err := cfg.CollectionConfig()
	if err != nil {
		return nil, err
	}

	// Open index
	idx := options.index
	if idx == nil {
		bc, err := cfg.BackendConfig()
		if err != nil {
			return nil, err
		}
		if idx, err = backends.Open(ctx, bc); err != nil {
			return nil, err
		}
	} else if err := idx.Init(ctx, collection); err != nil {
		idx.Close()
		return nil, err
	}

	// Create AI provider with configured settings
	provider := options.provider
	if provider == nil {
		if provider, err = openai.NewProvider(cfg.AIConfig()); err != nil {
			idx.Close()
			return nil, err
		}
	}

	e := &Engine{
		config:   cfg,
		index:    idx,
		provider: provider,
		logger:   options.logger.With("component", "engine"),
	}

	if dim := provider.Embedder().Dimension(); dim != collection.Dimension {
		e.Close()
		return nil, fmt.Errorf("%w: embedder produces %d, collection %q expects %d",
			core.ErrDimensionMismatch, dim, collection.Name, collection.Dimension)
	}

	chk, err := chunker.New(cfg.ChunkerOptions()...)
	if err != nil {
		e.Close()
		return nil, err
	}

	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(options.logger.With("component", "pipeline")),
		pipeline.WithEmbedBatchSize(cfg.AI.EmbeddingBatchSize),
		pipeline.WithRateLimit(cfg.Pipeline.RateLimit),
		pipeline.WithRetry(cfg.Pipeline.MaxRetries, cfg.RetryDelay()),
		pipeline.WithTopK(cfg.Retrieval.TopK),
		pipeline.WithMinScore(cfg.Retrieval.MinScore),
		pipeline.WithDefaultProvider(cfg.Provider.Default),
	}
	if cfg.Pipeline.PoolSize > 0 {
		pipelineOpts = append(pipelineOpts, pipeline.WithPoolSize(cfg.Pipeline.PoolSize))
	}
	pipelineOpts = append(pipelineOpts, options.pipelineOpts...)

	streamer := stream.NewStreamer(provider.Generators())
	if e.pipeline, err = pipeline.New(chk, provider.Embedder(), idx, streamer, pipelineOpts...); err != nil {
		e.Close()
		return nil, err
	}

	e.logger.Info("engine ready", "backend", cfg.Index.Backend, "collection", collection.Name,
		"dimension", collection.Dimension, "providers", streamer.Providers())
	return e, nil
}

// Close releases the pipeline, the provider and the index, in that order.
func (e *Engine) Close() error {
	if e.pipeline != nil {
		e.pipeline.Release()
	}

	var errs []error
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := e.index.Close(); err != nil {
		e.logger.Error("error closing index", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) Config() *config.Config {
	return e.config
}

func (e *Engine) Index() storage.VectorIndex {
	return e.index
}

func (e *Engine) Provider() ai.AIProvider {
	return e.provider
}

func (e *Engine) Pipeline() *pipeline.Pipeline {
	return e.pipeline
}

// NewServer returns an HTTP server over the engine's pipeline, bounded by
// the configured upload size.
func (e *Engine) NewServer(opts ...server.Option) *server.Server {
	opts = append([]server.Option{
		server.WithLogger(e.logger.With("component", "server")),
		server.WithMaxUploadBytes(e.config.Server.MaxUploadBytes),
	}, opts...)
	return server.New(e.pipeline, opts...)
}

// NewReembedder copies the engine's collection into target, re-embedded
// with embedder. A nil embedder selects the engine's own.
func (e *Engine) NewReembedder(target storage.VectorIndex, embedder ai.Embedder, cfg *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	if embedder == nil {
		embedder = e.provider.Embedder()
	}
	return reembed.NewReembedder(e.index, target, embedder, cfg, progress)
}
