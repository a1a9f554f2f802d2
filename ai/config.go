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


package ai

import (
	"errors"
	"strings"
)

const (
	// ProviderLocal names the local Ollama generation backend.
	ProviderLocal = "local"

	// ProviderOpenAI names the OpenAI-compatible chat completions backend.
	ProviderOpenAI = "openai"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "all-minilm", "text-embedding-3-small"
	EmbeddingModel string

	// Dimension is the expected embedding length. Default: 384
	Dimension int

	// EmbeddingBatchSize caps the number of texts sent per embedding request.
	EmbeddingBatchSize int

	// GenerationHost is the base URL of the Ollama server used by the local provider.
	// Example: "http://localhost:11434"
	GenerationHost string

	// GenerationModel is the Ollama model used by the local provider.
	GenerationModel string

	// OpenAIBaseURL, OpenAIAPIKey and OpenAIModel configure the openai provider.
	// The provider is only registered when a key or base URL is set.
	OpenAIBaseURL string
	OpenAIAPIKey  string
	OpenAIModel   string

	// Temperature is passed to both generation backends. Zero leaves the backend default.
	Temperature float64
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithDimension sets the expected embedding dimension.
func WithDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimension = dim
	}
}

// WithEmbeddingBatchSize sets the per-request embedding batch size.
func WithEmbeddingBatchSize(n int) ConfigOption {
	return func(c *Config) {
		c.EmbeddingBatchSize = n
	}
}

// WithGenerationHost sets the Ollama host used for local generation.
func WithGenerationHost(host string) ConfigOption {
	return func(c *Config) {
		c.GenerationHost = host
	}
}

// WithGenerationModel sets the Ollama model used for local generation.
func WithGenerationModel(model string) ConfigOption {
	return func(c *Config) {
		c.GenerationModel = model
	}
}

// WithOpenAI enables the openai generation provider.
func WithOpenAI(baseURL, apiKey, model string) ConfigOption {
	return func(c *Config) {
		c.OpenAIBaseURL = baseURL
		c.OpenAIAPIKey = apiKey
		if model != "" {
			c.OpenAIModel = model
		}
	}
}

// WithTemperature sets the sampling temperature for generation.
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// DefaultConfig returns a Config with sensible defaults for a local Ollama install.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingHost:      "http://localhost:11434/v1",
		EmbeddingModel:     "all-minilm",
		Dimension:          384,
		EmbeddingBatchSize: 32,
		GenerationHost:     "http://localhost:11434",
		GenerationModel:    "llama3.2:1b",
		OpenAIModel:        "gpt-4o-mini",
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//   cfg := NewConfig(
//       WithEmbeddingHost("http://gpu-box:11434"),
//       WithGenerationModel("llama3.2:3b"),
//   )
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// OpenAIEnabled reports whether the openai generation provider should be registered.
func (c *Config) OpenAIEnabled() bool {
	return c.OpenAIAPIKey != "" || c.OpenAIBaseURL != ""
}

// Normalize ensures the configuration is in a canonical form.
// The embedding host gets the /v1 suffix required by OpenAI-compatible APIs;
// the generation host loses it because Ollama's native API lives at the root.
func (c *Config) Normalize() {
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
		c.EmbeddingHost = c.EmbeddingHost + "/v1"
	}
	if c.GenerationHost != "" {
		c.GenerationHost = strings.TrimSuffix(c.GenerationHost, "/")
		c.GenerationHost = strings.TrimSuffix(c.GenerationHost, "/v1")
	}
	if c.EmbeddingBatchSize <= 0 {
		c.EmbeddingBatchSize = 32
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.Dimension <= 0 {
		return errors.New("ai config: Dimension must be positive")
	}
	if c.GenerationHost == "" {
		return errors.New("ai config: GenerationHost is required")
	}
	if c.GenerationModel == "" {
		return errors.New("ai config: GenerationModel is required")
	}
	if c.OpenAIEnabled() && c.OpenAIModel == "" {
		return errors.New("ai config: OpenAIModel is required when the openai provider is enabled")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("ai config: Temperature must be between 0 and 2")
	}
	return nil
}
