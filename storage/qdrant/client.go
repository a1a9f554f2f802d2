package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/ragstream/core"
)

// Config configures the REST client.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration

	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// client is a minimal Qdrant REST client.
type client struct {
	base   string
	apiKey string
	http   *http.Client
}

// statusError is returned for non-2xx responses.
type statusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %d %s", e.Method, e.Path, e.Code, e.Body)
}

func newClient(cfg Config) *client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &client{
		base:   strings.TrimSuffix(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		http:   httpClient,
	}
}

func collectionPath(name string, parts ...string) string {
	p := "/collections/" + url.PathEscape(name)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// do sends body as JSON and decodes the "result" field of the response into out.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &statusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type collectionInfo struct {
	Config struct {
		Params struct {
			Vectors vectorParams `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

type point struct {
	ID      uint64       `json:"id"`
	Vector  []float32    `json:"vector,omitempty"`
	Payload core.Payload `json:"payload"`
}

type scoredPoint struct {
	point
	Score float32 `json:"score"`
}

type matchValue struct {
	Value string `json:"value"`
}

type condition struct {
	Key   string     `json:"key"`
	Match matchValue `json:"match"`
}

type filter struct {
	Must []condition `json:"must"`
}

func documentFilter(documentID string) *filter {
	if documentID == "" {
		return nil
	}
	return &filter{Must: []condition{{Key: "document_id", Match: matchValue{Value: documentID}}}}
}

func toDistance(d core.Distance) string {
	switch d {
	case core.DistanceDot:
		return "Dot"
	case core.DistanceEuclid:
		return "Euclid"
	default:
		return "Cosine"
	}
}

func fromDistance(s string) core.Distance {
	switch strings.ToLower(s) {
	case "dot":
		return core.DistanceDot
	case "euclid":
		return core.DistanceEuclid
	default:
		return core.DistanceCosine
	}
}
