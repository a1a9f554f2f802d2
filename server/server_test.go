package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/ragstream/ai"
	"github.com/poiesic/ragstream/ai/mock"
	"github.com/poiesic/ragstream/chunker"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/pipeline"
	"github.com/poiesic/ragstream/storage/badger"
	"github.com/poiesic/ragstream/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	handler   http.Handler
	pipeline  *pipeline.Pipeline
	generator *mock.MockGenerator
}

func setup(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	idx, err := badger.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	require.NoError(t, idx.Init(context.Background(), core.CollectionConfig{Name: "test", Dimension: 8, Distance: core.DistanceCosine}))

	chk, err := chunker.New(chunker.WithMaxLength(50), chunker.WithOverlap(5))
	require.NoError(t, err)
	gen := mock.NewMockGenerator("Paris", " is the capital.")
	p, err := pipeline.New(chk, mock.NewMockEmbedderWithDimension(8), idx,
		stream.NewStreamer(map[string]ai.Generator{ai.ProviderLocal: gen}))
	require.NoError(t, err)
	t.Cleanup(p.Release)

	return &fixture{handler: New(p, opts...).Handler(), pipeline: p, generator: gen}
}

func multipartBody(t *testing.T, filename, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (f *fixture) upload(t *testing.T, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, filename, content, fields)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	f := setup(t)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok\n", w.Body.String())
}

func TestUpload(t *testing.T) {
	f := setup(t)
	w := f.upload(t, "notes.txt", "Paris is the capital of France. Berlin is the capital of Germany.", map[string]string{"document_id": "geo"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp uploadResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "geo", resp.DocumentID)
	assert.Equal(t, "notes.txt", resp.FileName)
	assert.Positive(t, resp.Chunks)
	assert.Equal(t, uploadMessage, resp.Message)
}

func TestUploadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		f := setup(t)
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("document_id", "x"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		f.handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unsupported type", func(t *testing.T) {
		f := setup(t)
		w := f.upload(t, "image.png", "\x89PNG", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("too large", func(t *testing.T) {
		f := setup(t, WithMaxUploadBytes(64))
		w := f.upload(t, "big.txt", strings.Repeat("x", 1024), nil)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		f := setup(t)
		w := httptest.NewRecorder()
		f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/upload", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestSearchStreamsAnswer(t *testing.T) {
	f := setup(t)
	require.Equal(t, http.StatusOK, f.upload(t, "geo.txt", "Paris is the capital of France.", nil).Code)

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/search_rag?" + url.Values{"query": {"capital of France?"}}.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital.", string(body))
}

func TestSearchPostJSON(t *testing.T) {
	f := setup(t)
	require.Equal(t, http.StatusOK, f.upload(t, "geo.txt", "Paris is the capital of France.", nil).Code)

	req := httptest.NewRequest(http.MethodPost, "/search_rag", strings.NewReader(`{"query":"capital?","top_k":1}`))
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Paris is the capital.", w.Body.String())
}

func TestSearchFallback(t *testing.T) {
	f := setup(t)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search_rag?query=anything", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pipeline.FallbackMessage, w.Body.String())
	assert.Zero(t, f.generator.CallCount())
}

func TestSearchPreStreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		status int
	}{
		{"unsupported provider", "/search_rag?query=hi&provider=gpt-99", http.StatusBadRequest},
		{"missing query", "/search_rag", http.StatusBadRequest},
		{"bad top_k", "/search_rag?query=hi&top_k=zero", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			w := httptest.NewRecorder()
			f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestSearchClientDisconnectStopsGeneration(t *testing.T) {
	f := setup(t)
	require.Equal(t, http.StatusOK, f.upload(t, "geo.txt", "Paris is the capital of France.", nil).Code)

	f.generator.GenerateFunc = func(ctx context.Context, _ string, emit func(string) error) error {
		if err := emit("first"); err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	}

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/search_rag?query=capital", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	buf := make([]byte, len("first"))
	_, err = io.ReadFull(resp.Body, buf)
	require.NoError(t, err)
	assert.Equal(t, "first", string(buf))

	cancel()
	resp.Body.Close()

	assert.Eventually(t, func() bool { return f.generator.Finished() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestDeleteDocument(t *testing.T) {
	f := setup(t)
	require.Equal(t, http.StatusOK, f.upload(t, "geo.txt", "Paris is the capital of France.", map[string]string{"document_id": "geo"}).Code)

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/documents/geo", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp deleteResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "geo", resp.DocumentID)
	assert.Equal(t, 1, resp.Deleted)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	s := New(f.pipeline)

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
