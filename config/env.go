package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/joho/godotenv"
)

// ErrInvalidEnv is returned when an environment override cannot be parsed.
var ErrInvalidEnv = errors.New("invalid environment value")

// LoadEnv loads variables from the given .env files (".env" when none are
// given) without overriding variables already set. Missing files are skipped.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides configuration values from the environment. When two
// variables set the same value the first listed wins.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	integer := func(dst *int, key string) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidEnv, key, v)
		}
		*dst = n
		return nil
	}

	str(&c.Index.Backend, "RAG_INDEX_BACKEND")
	str(&c.Index.Path, "RAG_INDEX_PATH")
	str(&c.Index.URL, "RAG_INDEX_URL", "QDRANT_URL")
	str(&c.Index.APIKey, "RAG_INDEX_API_KEY", "QDRANT_API_KEY")
	str(&c.Index.Collection, "RAG_COLLECTION")
	str(&c.Provider.Default, "RAG_PROVIDER")
	str(&c.AI.EmbeddingHost, "RAG_EMBEDDING_HOST")
	str(&c.AI.EmbeddingModel, "RAG_EMBEDDING_MODEL")
	str(&c.AI.GenerationHost, "RAG_GENERATION_HOST")
	str(&c.AI.GenerationModel, "RAG_GENERATION_MODEL")
	str(&c.AI.OpenAIAPIKey, "OPENAI_API_KEY")
	str(&c.AI.OpenAIBaseURL, "OPENAI_BASE_URL")
	str(&c.Logging.Level, "RAG_LOG_LEVEL")

	for key, dst := range map[string]*int{
		"RAG_DIMENSION":        &c.Index.Dimension,
		"RAG_CHUNK_MAX_LENGTH": &c.Chunking.MaxLength,
		"RAG_CHUNK_OVERLAP":    &c.Chunking.Overlap,
		"RAG_TOP_K":            &c.Retrieval.TopK,
	} {
		if err := integer(dst, key); err != nil {
			return err
		}
	}
	return nil
}
