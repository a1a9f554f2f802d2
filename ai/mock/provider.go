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


package mock

import "github.com/poiesic/ragstream/ai"

// MockProvider is a test double for ai.AIProvider.
// It aggregates a mock embedder and mock generators.
type MockProvider struct {
	embedder   *MockEmbedder
	generators map[string]*MockGenerator
	closed     bool
}

// NewMockProvider creates a new mock provider with a default embedder and a
// "local" generator.
//
// Returns ai.AIProvider interface for consistency with production constructors.
// Use GetMockEmbedder()/GetMockGenerator() to access concrete types for test assertions.
func NewMockProvider() ai.AIProvider {
	return NewMockProviderWithServices(NewMockEmbedder(), map[string]*MockGenerator{
		ai.ProviderLocal: NewMockGenerator("mock answer"),
	})
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
func NewMockProviderWithServices(embedder *MockEmbedder, generators map[string]*MockGenerator) *MockProvider {
	return &MockProvider{
		embedder:   embedder,
		generators: generators,
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Generators returns the mock generators keyed by provider name.
func (p *MockProvider) Generators() map[string]ai.Generator {
	out := make(map[string]ai.Generator, len(p.generators))
	for name, g := range p.generators {
		out[name] = g
	}
	return out
}

// Close marks the provider closed.
func (p *MockProvider) Close() error {
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *MockProvider) Closed() bool {
	return p.closed
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockGenerator returns the mock generator registered under name.
func (p *MockProvider) GetMockGenerator(name string) *MockGenerator {
	return p.generators[name]
}
