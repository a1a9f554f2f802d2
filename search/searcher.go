package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
)

// DefaultTopK is the number of chunks retrieved when a query does not say.
const DefaultTopK = 3

// Searcher retrieves the chunks most similar to a query.
type Searcher struct {
	index    storage.VectorIndex
	embedder ai.Embedder
	minScore float32
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinScore drops hits scoring below score. Zero disables the filter.
func WithMinScore(score float32) Option {
	return func(s *Searcher) error {
		s.minScore = score
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(index storage.VectorIndex, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		index:    index,
		embedder: embedder,
		logger:   slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// FindSimilar returns up to topK chunks similar to query, best first.
// A nil filter searches every document.
func (s *Searcher) FindSimilar(ctx context.Context, query string, topK int, filter *storage.Filter) ([]*core.SearchResult, error) {
	return s.FindSimilarWithMonitor(ctx, query, topK, filter, nil)
}

// FindSimilarWithMonitor is FindSimilar with callbacks at each stage.
// Embedding and index failures are returned as errors, never as an empty result.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, query string, topK int, filter *storage.Filter, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if strings.TrimSpace(query) == "" {
		return nil, core.ErrEmptyQuery
	}
	if topK < 1 {
		return nil, core.ErrInvalidTopK
	}

	monitor.Start(query)

	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(embedding)

	matches, err := s.index.Search(ctx, embedding, topK, filter)
	if err != nil {
		s.logger.Error("error searching index", "err", err)
		return nil, err
	}
	monitor.AfterIndexSearch(matches)

	results := make([]*core.SearchResult, 0, len(matches))
	for _, match := range matches {
		if s.minScore > 0 && match.Score < s.minScore {
			continue
		}
		monitor.Hit(match, containsAllTerms(match.Point.Payload.ChunkText, query))
		results = append(results, match)
	}
	s.logger.Debug("search complete", "hits", len(matches), "kept", len(results))
	monitor.Finish(results)

	return results, nil
}

// Retrieve runs q and returns the ranked results with their chunk texts.
// A zero TopK selects DefaultTopK.
func (s *Searcher) Retrieve(ctx context.Context, q core.Query) ([]*core.SearchResult, core.ContextSet, error) {
	topK := q.TopK
	if topK == 0 {
		topK = DefaultTopK
	}
	var filter *storage.Filter
	if q.DocumentID != "" {
		filter = &storage.Filter{DocumentID: q.DocumentID}
	}

	results, err := s.FindSimilar(ctx, q.Text, topK, filter)
	if err != nil {
		return nil, nil, err
	}
	return results, core.ContextFromResults(results), nil
}
