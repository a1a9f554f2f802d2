// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Generator,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	vec, err := mockProvider.Embedder().EmbedQuery(ctx, "test")
//
//	// Custom behavior injection
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedBatchFunc = func(ctx context.Context, texts []string) ([]core.Vector, error) {
//	    return nil, errors.New("backend down")
//	}
//
//	// Scripted generation
//	gen := mock.NewMockGenerator("Hello", ", ", "world")
//	gen.Err = errors.New("connection reset")
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockGenerator: Emits its fragments in order, then returns Err
//   - MockProvider: Aggregates a mock embedder and a "local" mock generator
package mock
