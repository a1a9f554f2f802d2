package mock

import (
	"context"
	"sync"
)

// MockGenerator is a test double for ai.Generator.
// By default it emits Fragments in order and then returns Err.
type MockGenerator struct {
	// Fragments are emitted in order by the default behavior.
	Fragments []string

	// Err is returned after all fragments were emitted.
	Err error

	// GenerateFunc replaces the default behavior if set.
	GenerateFunc func(ctx context.Context, prompt string, emit func(string) error) error

	mu        sync.Mutex
	callCount int
	prompts   []string
	active    int
	finished  int
}

// NewMockGenerator creates a generator that emits fragments and finishes cleanly.
func NewMockGenerator(fragments ...string) *MockGenerator {
	return &MockGenerator{Fragments: fragments}
}

// Generate records the call and runs the configured behavior.
// Context cancellation is honoured between fragments.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, emit func(string) error) error {
	m.mu.Lock()
	m.callCount++
	m.prompts = append(m.prompts, prompt)
	m.active++
	fn := m.GenerateFunc
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.finished++
		m.mu.Unlock()
	}()

	if fn != nil {
		return fn(ctx, prompt, emit)
	}

	for _, f := range m.Fragments {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(f); err != nil {
			return err
		}
	}
	return m.Err
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Prompts returns the prompts received, in call order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Active returns the number of Generate calls that have not returned yet.
func (m *MockGenerator) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Finished returns the number of Generate calls that have returned.
func (m *MockGenerator) Finished() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.finished
}
