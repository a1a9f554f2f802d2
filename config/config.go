// Package config loads process configuration for the ragstream binaries.
//
// Values come from, in increasing precedence: built-in defaults, a YAML or
// TOML file, and environment variables (optionally seeded from a .env file).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/chunker"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage/backends"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// FileNames are searched, in order, by Find.
var FileNames = []string{"ragstream.yaml", "ragstream.yml", "ragstream.toml"}

// Config holds all configuration for ragstream.
type Config struct {
	Index     IndexConfig     `yaml:"index" toml:"index"`
	Chunking  ChunkingConfig  `yaml:"chunking" toml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval" toml:"retrieval"`
	AI        AIConfig        `yaml:"ai" toml:"ai"`
	Pipeline  PipelineConfig  `yaml:"pipeline" toml:"pipeline"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Provider  ProviderConfig  `yaml:"provider" toml:"provider"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// IndexConfig selects the vector index backend and collection.
type IndexConfig struct {
	Backend        string `yaml:"backend" toml:"backend"` // badger, bolt, qdrant or memory
	Path           string `yaml:"path" toml:"path"`
	URL            string `yaml:"url" toml:"url"`
	APIKey         string `yaml:"api_key" toml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
	Collection     string `yaml:"collection" toml:"collection"`
	Dimension      int    `yaml:"dimension" toml:"dimension"`
	Distance       string `yaml:"distance" toml:"distance"`
}

// ChunkingConfig configures how documents are split.
type ChunkingConfig struct {
	MaxLength int    `yaml:"max_length" toml:"max_length"`
	Overlap   int    `yaml:"overlap" toml:"overlap"`
	Strategy  string `yaml:"strategy" toml:"strategy"`
}

// RetrievalConfig configures similarity search.
type RetrievalConfig struct {
	TopK     int     `yaml:"top_k" toml:"top_k"`
	MinScore float32 `yaml:"min_score" toml:"min_score"` // 0 disables the filter
}

// AIConfig configures embedding and generation backends.
type AIConfig struct {
	EmbeddingHost      string  `yaml:"embedding_host" toml:"embedding_host"`
	EmbeddingModel     string  `yaml:"embedding_model" toml:"embedding_model"`
	EmbeddingBatchSize int     `yaml:"embedding_batch_size" toml:"embedding_batch_size"`
	GenerationHost     string  `yaml:"generation_host" toml:"generation_host"`
	GenerationModel    string  `yaml:"generation_model" toml:"generation_model"`
	OpenAIBaseURL      string  `yaml:"openai_base_url" toml:"openai_base_url"`
	OpenAIAPIKey       string  `yaml:"openai_api_key" toml:"openai_api_key"`
	OpenAIModel        string  `yaml:"openai_model" toml:"openai_model"`
	Temperature        float64 `yaml:"temperature" toml:"temperature"`
}

// PipelineConfig tunes ingestion concurrency.
type PipelineConfig struct {
	PoolSize     int     `yaml:"pool_size" toml:"pool_size"` // 0 selects NumCPU/2
	RateLimit    float64 `yaml:"rate_limit" toml:"rate_limit"` // embedding calls per second, 0 is unlimited
	MaxRetries   int     `yaml:"max_retries" toml:"max_retries"`
	RetryDelayMS int     `yaml:"retry_delay_ms" toml:"retry_delay_ms"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr           string `yaml:"addr" toml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" toml:"max_upload_bytes"`
}

// ProviderConfig names the generator used when a query does not choose one.
type ProviderConfig struct {
	Default string `yaml:"default" toml:"default"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Index: IndexConfig{
			Backend:        backends.Badger,
			Path:           filepath.Join(".ragstream", "index"),
			TimeoutSeconds: 30,
			Collection:     "rag_files",
			Dimension:      aiDefaults.Dimension,
			Distance:       string(core.DistanceCosine),
		},
		Chunking: ChunkingConfig{
			MaxLength: chunker.DefaultMaxLength,
			Overlap:   chunker.DefaultOverlap,
			Strategy:  string(chunker.StrategyFixed),
		},
		Retrieval: RetrievalConfig{
			TopK: 3,
		},
		AI: AIConfig{
			EmbeddingHost:      aiDefaults.EmbeddingHost,
			EmbeddingModel:     aiDefaults.EmbeddingModel,
			EmbeddingBatchSize: aiDefaults.EmbeddingBatchSize,
			GenerationHost:     aiDefaults.GenerationHost,
			GenerationModel:    aiDefaults.GenerationModel,
			OpenAIModel:        aiDefaults.OpenAIModel,
		},
		Pipeline: PipelineConfig{
			MaxRetries:   3,
			RetryDelayMS: 500,
		},
		Server: ServerConfig{
			Addr:           ":8000",
			MaxUploadBytes: 32 << 20,
		},
		Provider: ProviderConfig{
			Default: ai.ProviderLocal,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error. Files ending in .toml are parsed as TOML,
// anything else as YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := cfg.decode(path, data); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Find returns the first of FileNames present in dir, or "" if none is.
func Find(dir string) string {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func (c *Config) decode(path string, data []byte) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return toml.Unmarshal(data, c)
	}
	return yaml.Unmarshal(data, c)
}

// Save writes the configuration to path in the format its extension selects.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		data, err = toml.Marshal(c)
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := c.CollectionConfig(); err != nil {
		return fmt.Errorf("%w: index: %w", ErrInvalidConfig, err)
	}
	if err := core.ValidateChunkParams(c.Chunking.MaxLength, c.Chunking.Overlap); err != nil {
		return fmt.Errorf("%w: chunking: %w", ErrInvalidConfig, err)
	}
	if _, err := chunker.ParseStrategy(c.Chunking.Strategy); err != nil {
		return fmt.Errorf("%w: chunking: %w", ErrInvalidConfig, err)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("%w: retrieval: %w", ErrInvalidConfig, core.ErrInvalidTopK)
	}
	if c.Provider.Default == "" {
		return fmt.Errorf("%w: provider: default is required", ErrInvalidConfig)
	}
	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// CollectionConfig returns the collection the index is bound to.
func (c *Config) CollectionConfig() (core.CollectionConfig, error) {
	distance, err := core.ParseDistance(c.Index.Distance)
	if err != nil {
		return core.CollectionConfig{}, fmt.Errorf("%w: distance %q", err, c.Index.Distance)
	}
	cfg := core.CollectionConfig{Name: c.Index.Collection, Dimension: c.Index.Dimension, Distance: distance}
	if err := core.ValidateCollectionConfig(cfg); err != nil {
		return core.CollectionConfig{}, err
	}
	return cfg, nil
}

// BackendConfig returns the settings for backends.Open, including the
// collection to initialize.
func (c *Config) BackendConfig() (backends.Config, error) {
	collection, err := c.CollectionConfig()
	if err != nil {
		return backends.Config{}, err
	}
	return backends.Config{
		Backend:    c.Index.Backend,
		Path:       c.Index.Path,
		URL:        c.Index.URL,
		APIKey:     c.Index.APIKey,
		Timeout:    time.Duration(c.Index.TimeoutSeconds) * time.Second,
		Collection: collection,
	}, nil
}

// AIConfig converts the ai section into an ai.Config. The index dimension
// is the embedding dimension.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithDimension(c.Index.Dimension),
		ai.WithEmbeddingBatchSize(c.AI.EmbeddingBatchSize),
		ai.WithGenerationHost(c.AI.GenerationHost),
		ai.WithGenerationModel(c.AI.GenerationModel),
		ai.WithOpenAI(c.AI.OpenAIBaseURL, c.AI.OpenAIAPIKey, c.AI.OpenAIModel),
		ai.WithTemperature(c.AI.Temperature),
	)
}

// ChunkerOptions returns the options for chunker.New.
func (c *Config) ChunkerOptions() []chunker.Option {
	return []chunker.Option{
		chunker.WithMaxLength(c.Chunking.MaxLength),
		chunker.WithOverlap(c.Chunking.Overlap),
		chunker.WithStrategy(chunker.Strategy(c.Chunking.Strategy)),
	}
}

// RetryDelay returns the base backoff delay for embedding retries.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Pipeline.RetryDelayMS) * time.Millisecond
}
