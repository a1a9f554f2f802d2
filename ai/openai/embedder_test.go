package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embeddingServer answers /v1/embeddings with vectors of length dim whose
// first component encodes the input position.
func embeddingServer(t *testing.T, dim int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, len(req.Input))
		for i, text := range req.Input {
			vec := make([]float32, dim)
			vec[0] = float32(len(text))
			data[i] = item{Embedding: vec, Index: i}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": "test"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedder_EmbedBatch(t *testing.T) {
	var calls atomic.Int32
	srv := embeddingServer(t, 4, &calls)

	cfg := ai.NewConfig(ai.WithEmbeddingHost(srv.URL), ai.WithDimension(4), ai.WithEmbeddingBatchSize(2))
	emb, err := NewEmbedder(cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, emb.Dimension())

	vectors, err := emb.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, float32(1), vectors[0][0])
	assert.Equal(t, float32(2), vectors[1][0])
	assert.Equal(t, float32(3), vectors[2][0])
	assert.Equal(t, int32(2), calls.Load(), "batch size 2 splits three texts into two requests")

	vectors, err = emb.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbedder_DimensionMismatch(t *testing.T) {
	var calls atomic.Int32
	srv := embeddingServer(t, 3, &calls)

	cfg := ai.NewConfig(ai.WithEmbeddingHost(srv.URL), ai.WithDimension(4))
	emb, err := NewEmbedder(cfg)
	require.NoError(t, err)

	_, err = emb.EmbedBatch(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, core.ErrEmbeddingFailure)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	_, err = emb.EmbedQuery(context.Background(), "a")
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestEmbedder_BackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model not loaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := ai.NewConfig(ai.WithEmbeddingHost(srv.URL))
	emb, err := NewEmbedder(cfg)
	require.NoError(t, err)

	vectors, err := emb.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, core.ErrEmbeddingFailure)
	assert.Nil(t, vectors)
}
