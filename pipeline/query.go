package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/search"
	"github.com/poiesic/ragstream/storage"
	"github.com/poiesic/ragstream/stream"
)

// Query answers q from the indexed documents as a lazy sequence of text
// fragments.
//
// The provider is checked before any retrieval work. When the query cannot
// be embedded no answer can be generated, and the sequence yields a single
// "[Error: <message>]" fragment. Other retrieval failures, such as an
// unavailable index, are returned as errors. When nothing relevant is found
// the sequence yields only the fallback message. Errors raised while
// generating end the sequence with a final "\n[Error: <message>]" fragment;
// the sequence itself never yields an error.
func (p *Pipeline) Query(ctx context.Context, q core.Query) (iter.Seq2[string, error], error) {
	if q.Provider == "" {
		q.Provider = p.defaultProvider
	}
	if !p.streamer.Supports(q.Provider) {
		return nil, fmt.Errorf("%w: %q (available: %s)", core.ErrUnsupportedProvider, q.Provider, strings.Join(p.streamer.Providers(), ", "))
	}

	_, chunks, err := p.Retrieve(ctx, q)
	switch {
	case errors.Is(err, core.ErrEmbeddingFailure) && !errors.Is(err, core.ErrIndexUnavailable):
		p.logger.Warn("query embedding failed", "provider", q.Provider, "error", err)
		return single(errorFragment(err)), nil
	case err != nil:
		return nil, err
	}
	if len(chunks) == 0 {
		p.logger.Info("no relevant context found", "query", q.Text)
		return single(p.fallback), nil
	}

	prompt, err := p.prompts.Build(q.Text, chunks)
	if err != nil {
		return nil, err
	}
	seq, err := p.streamer.Stream(ctx, prompt, q.Provider)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("streaming answer", "provider", q.Provider, "chunks", len(chunks))
	return inBandErrors(seq), nil
}

// Answer runs Query and collects the whole answer.
func (p *Pipeline) Answer(ctx context.Context, q core.Query) (string, error) {
	seq, err := p.Query(ctx, q)
	if err != nil {
		return "", err
	}
	return stream.Collect(seq)
}

// Retrieve returns the ranked results for q and their chunk texts.
// A zero TopK selects the pipeline default.
func (p *Pipeline) Retrieve(ctx context.Context, q core.Query) ([]*core.SearchResult, core.ContextSet, error) {
	if q.TopK == 0 {
		q.TopK = p.topK
	}
	return p.searcher.Retrieve(ctx, q)
}

// RetrieveWithMonitor is Retrieve with a monitor observing each step.
func (p *Pipeline) RetrieveWithMonitor(ctx context.Context, q core.Query, monitor search.SearchMonitor) ([]*core.SearchResult, error) {
	if q.TopK == 0 {
		q.TopK = p.topK
	}
	var filter *storage.Filter
	if q.DocumentID != "" {
		filter = &storage.Filter{DocumentID: q.DocumentID}
	}
	return p.searcher.FindSimilarWithMonitor(ctx, q.Text, q.TopK, filter, monitor)
}

func single(fragment string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield(fragment, nil)
	}
}

func errorFragment(err error) string {
	return "[Error: " + err.Error() + "]"
}

func inBandErrors(seq iter.Seq2[string, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for fragment, err := range seq {
			if err != nil {
				yield("\n"+errorFragment(err), nil)
				return
			}
			if !yield(fragment, nil) {
				return
			}
		}
	}
}
