package pipeline

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/extract"
	"github.com/poiesic/ragstream/prompt"
	"github.com/poiesic/ragstream/search"
	"github.com/poiesic/ragstream/storage"
	"github.com/poiesic/ragstream/stream"
	"golang.org/x/time/rate"
)

const (
	DefaultEmbedBatchSize = 32
	DefaultMaxAttempts    = 3
	DefaultRetryDelay     = 500 * time.Millisecond
	DefaultProvider       = ai.ProviderLocal

	// FallbackMessage is the only fragment streamed when retrieval finds nothing.
	FallbackMessage = "I could not find any relevant information in the uploaded documents to answer your question."
)

// Chunker splits document text into chunks.
type Chunker interface {
	Chunk(documentID, text string, fileType core.FileType) ([]core.Chunk, error)
}

// Pipeline wires the ingestion and query stages together.
// It is safe for concurrent use.
type Pipeline struct {
	chunker   Chunker
	embedder  ai.Embedder
	index     storage.VectorIndex
	streamer  *stream.Streamer
	searcher  *search.Searcher
	extractor extract.Extractor
	prompts   *prompt.Builder

	embeddingPool  *ants.Pool
	embedBatchSize int
	limiter        *rate.Limiter
	maxAttempts    int
	retryDelay     time.Duration

	topK            int
	minScore        float32
	defaultProvider string
	fallback        string
	logger          *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}
		p.embeddingPool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithEmbedBatchSize sets how many chunks go into one embedding call.
func WithEmbedBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = DefaultEmbedBatchSize
		}
		p.embedBatchSize = n
		return nil
	}
}

// WithRateLimit caps embedding calls per second across the pipeline.
// Zero or less means unlimited.
func WithRateLimit(callsPerSecond float64) Option {
	return func(p *Pipeline) error {
		if callsPerSecond <= 0 {
			p.limiter = nil
			return nil
		}
		p.limiter = rate.NewLimiter(rate.Limit(callsPerSecond), 1)
		return nil
	}
}

// WithRetry sets the attempts and base backoff delay for embedding calls.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		p.maxAttempts = maxAttempts
		p.retryDelay = baseDelay
		return nil
	}
}

// WithExtractor replaces the built-in extractors.
func WithExtractor(e extract.Extractor) Option {
	return func(p *Pipeline) error {
		if e != nil {
			p.extractor = e
		}
		return nil
	}
}

// WithPromptBuilder replaces the default prompt template.
func WithPromptBuilder(b *prompt.Builder) Option {
	return func(p *Pipeline) error {
		if b != nil {
			p.prompts = b
		}
		return nil
	}
}

// WithTopK sets the number of chunks retrieved when a query does not say.
func WithTopK(k int) Option {
	return func(p *Pipeline) error {
		if k < 1 {
			return core.ErrInvalidTopK
		}
		p.topK = k
		return nil
	}
}

// WithMinScore drops retrieved chunks scoring below score.
func WithMinScore(score float32) Option {
	return func(p *Pipeline) error {
		p.minScore = score
		return nil
	}
}

// WithDefaultProvider sets the generator used when a query names none.
func WithDefaultProvider(name string) Option {
	return func(p *Pipeline) error {
		if name != "" {
			p.defaultProvider = name
		}
		return nil
	}
}

// WithFallbackMessage replaces FallbackMessage.
func WithFallbackMessage(msg string) Option {
	return func(p *Pipeline) error {
		if msg != "" {
			p.fallback = msg
		}
		return nil
	}
}

// New creates a pipeline over the given collaborators. The index must be
// initialized before ingesting or querying.
func New(chunker Chunker, embedder ai.Embedder, index storage.VectorIndex, streamer *stream.Streamer, opts ...Option) (*Pipeline, error) {
	if chunker == nil {
		return nil, ErrChunkerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if streamer == nil {
		return nil, ErrStreamerRequired
	}

	prompts, err := prompt.New()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		chunker:         chunker,
		embedder:        embedder,
		index:           index,
		streamer:        streamer,
		extractor:       extract.New(),
		prompts:         prompts,
		embedBatchSize:  DefaultEmbedBatchSize,
		maxAttempts:     DefaultMaxAttempts,
		retryDelay:      DefaultRetryDelay,
		topK:            search.DefaultTopK,
		defaultProvider: DefaultProvider,
		fallback:        FallbackMessage,
		logger:          slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	if p.embeddingPool == nil {
		pool, err := ants.NewPool(max(runtime.NumCPU()/2, 1))
		if err != nil {
			return nil, err
		}
		p.embeddingPool = pool
	}

	p.searcher, err = search.NewSearcher(index, embedder,
		search.WithLogger(p.logger.With("stage", "retrieve")),
		search.WithMinScore(p.minScore))
	if err != nil {
		p.Release()
		return nil, err
	}

	return p, nil
}

// Searcher returns the retrieval stage, for callers that want to monitor it.
func (p *Pipeline) Searcher() *search.Searcher {
	return p.searcher
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}
