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


package openai

import (
	"log/slog"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/ai/ollama"
)

// Provider implements ai.AIProvider using an OpenAI-compatible embedding
// service, a local Ollama generator and, when configured, an OpenAI-compatible
// chat completions generator.
type Provider struct {
	config     *ai.Config
	embedder   *Embedder
	generators map[string]ai.Generator
	logger     *slog.Logger
}

// NewProvider creates a new AI provider.
// The config is validated and normalized before use.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	local, err := ollama.NewGenerator(config)
	if err != nil {
		return nil, err
	}

	generators := map[string]ai.Generator{
		ai.ProviderLocal: local,
	}
	if config.OpenAIEnabled() {
		generators[ai.ProviderOpenAI] = newGenerator(config)
	}

	return &Provider{
		config:     config,
		embedder:   embedder,
		generators: generators,
		logger:     slog.Default().With("component", "openai-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Generators returns the registered generation backends keyed by provider name.
func (p *Provider) Generators() map[string]ai.Generator {
	out := make(map[string]ai.Generator, len(p.generators))
	for name, g := range p.generators {
		out[name] = g
	}
	return out
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing provider")
	return nil
}
