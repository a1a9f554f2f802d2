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


// Package openai provides AI service implementations using OpenAI-compatible APIs.
//
// Embeddings go through langchaingo's OpenAI client, which works against
// OpenAI itself as well as Ollama, LocalAI or vLLM. Streaming generation for
// the "openai" provider uses the official openai-go SDK.
//
// # Usage
//
//	config := ai.NewConfig(ai.WithEmbeddingHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedQuery(ctx, "sample text")
//	err = provider.Generators()[ai.ProviderLocal].Generate(ctx, prompt, func(s string) error {
//	    fmt.Print(s)
//	    return nil
//	})
package openai
