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


// Package ai provides abstractions for the model services used by ragstream.
//
// This package defines interfaces for text embeddings and streamed answer
// generation. Retrieval and ingestion depend on these abstractions rather
// than on concrete clients.
//
// # Design Principles
//
// The package is designed around three key interfaces:
//
//   - Embedder: Maps text to fixed-dimension vectors
//   - Generator: Streams answer fragments for a prompt
//   - AIProvider: Aggregates an embedder and named generators
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible embeddings and chat completions
//   - ai/ollama: The "local" generator backed by an Ollama server
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, ...) return
// INTERFACE types to enforce abstraction. Test utility constructors
// (mock.NewMockEmbedder, mock.NewMockGenerator) return CONCRETE types so
// tests can inject behavior and assert on call counts.
//
// # Usage Example
//
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedBatch(ctx, []string{"Hello world"})
package ai
