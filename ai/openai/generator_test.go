package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/poiesic/ragstream/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatStreamServer(t *testing.T, fragments ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, f := range fragments {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m\","+
				"\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", f)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerator_Streams(t *testing.T) {
	srv := chatStreamServer(t, "Hel", "lo", "", " world")
	cfg := ai.NewConfig(ai.WithOpenAI(srv.URL+"/v1", "sk-test", "test-model"))

	gen, err := NewGenerator(cfg)
	require.NoError(t, err)

	var got []string
	err = gen.Generate(context.Background(), "say hello", func(s string) error {
		got = append(got, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo", " world"}, got)
}

func TestGenerator_EmitErrorStops(t *testing.T) {
	srv := chatStreamServer(t, "a", "b", "c")
	cfg := ai.NewConfig(ai.WithOpenAI(srv.URL+"/v1", "sk-test", "test-model"))

	gen, err := NewGenerator(cfg)
	require.NoError(t, err)

	stop := errors.New("stop")
	var got []string
	err = gen.Generate(context.Background(), "p", func(s string) error {
		got = append(got, s)
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []string{"a"}, got)
}

func TestProvider_RegistersGenerators(t *testing.T) {
	p, err := NewProvider(ai.NewConfig())
	require.NoError(t, err)
	defer p.Close()

	gens := p.Generators()
	assert.Contains(t, gens, ai.ProviderLocal)
	assert.NotContains(t, gens, ai.ProviderOpenAI)
	assert.Equal(t, 384, p.Embedder().Dimension())

	p, err = NewProvider(ai.NewConfig(ai.WithOpenAI("", "sk-test", "")))
	require.NoError(t, err)
	assert.Contains(t, p.Generators(), ai.ProviderOpenAI)
}
