// Package stream turns callback-style generators into lazy fragment sequences.
package stream

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/core"
)

// errStopped is handed to the generator when the consumer stops early.
var errStopped = errors.New("stream consumer stopped")

// Streamer dispatches prompts to generators by provider name.
type Streamer struct {
	generators map[string]ai.Generator
}

// NewStreamer registers generators by provider name. The map is copied.
func NewStreamer(generators map[string]ai.Generator) *Streamer {
	return &Streamer{generators: maps.Clone(generators)}
}

// Supports reports whether provider is registered.
func (s *Streamer) Supports(provider string) bool {
	_, ok := s.generators[provider]
	return ok
}

// Providers returns the registered provider names, sorted.
func (s *Streamer) Providers() []string {
	return slices.Sorted(maps.Keys(s.generators))
}

// Stream returns the answer to prompt from provider as a lazy sequence.
// An unknown provider fails here, before anything is generated.
func (s *Streamer) Stream(ctx context.Context, prompt, provider string) (iter.Seq2[string, error], error) {
	gen, ok := s.generators[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", core.ErrUnsupportedProvider, provider, strings.Join(s.Providers(), ", "))
	}
	return FromGenerator(ctx, gen, prompt), nil
}

type fragment struct {
	text string
	err  error
}

// FromGenerator runs gen lazily when the sequence is first iterated. Fragments
// are handed over an unbuffered channel so generation never runs ahead of the
// consumer. The generator's context is cancelled and its goroutine waited for
// on every exit path, including a consumer break. The sequence is single-use;
// iterating it again yields nothing.
func FromGenerator(ctx context.Context, gen ai.Generator, prompt string) iter.Seq2[string, error] {
	var once sync.Once
	return func(yield func(string, error) bool) {
		first := false
		once.Do(func() { first = true })
		if !first {
			return
		}

		genCtx, cancel := context.WithCancel(ctx)
		ch := make(chan fragment)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(ch)
			err := gen.Generate(genCtx, prompt, func(text string) error {
				select {
				case ch <- fragment{text: text}:
					return nil
				case <-genCtx.Done():
					return errStopped
				}
			})
			if err != nil && !errors.Is(err, errStopped) {
				select {
				case ch <- fragment{err: err}:
				case <-genCtx.Done():
				}
			}
		}()
		defer func() {
			cancel()
			wg.Wait()
		}()

		for f := range ch {
			if !yield(f.text, f.err) || f.err != nil {
				return
			}
		}
	}
}

// Collect drains seq and concatenates its fragments. It stops at the first error.
func Collect(seq iter.Seq2[string, error]) (string, error) {
	var sb strings.Builder
	for text, err := range seq {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
