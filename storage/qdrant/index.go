package qdrant

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
)

// Index implements storage.VectorIndex against a Qdrant server.
//
// Scan pages in point-ID order, which is Qdrant's scroll order. Search
// over-fetches and re-ranks ties by insertion time so ordering matches the
// embedded backends.
type Index struct {
	client *client
	logger *slog.Logger

	mu  sync.RWMutex
	cfg *core.CollectionConfig
}

var _ storage.VectorIndex = (*Index)(nil)

// New creates an uninitialized index talking to cfg.URL.
func New(cfg Config) (storage.VectorIndex, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant: URL is required")
	}
	return &Index{
		client: newClient(cfg),
		logger: slog.Default().With("component", "qdrant-index"),
	}, nil
}

// Init fetches the collection, creating it when absent. A concurrent creator
// winning the race is detected by re-reading and comparing the configuration.
func (i *Index) Init(ctx context.Context, cfg core.CollectionConfig) error {
	if err := core.ValidateCollectionConfig(cfg); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.cfg != nil {
		if i.cfg.Equal(cfg) {
			return nil
		}
		return fmt.Errorf("%w: index already bound to %q", core.ErrConfigConflict, i.cfg.Name)
	}

	existing, found, err := i.describe(ctx, cfg.Name)
	if err != nil {
		return unavailable(err)
	}
	if !found {
		body := map[string]any{"vectors": vectorParams{Size: cfg.Dimension, Distance: toDistance(cfg.Distance)}}
		err := i.client.do(ctx, http.MethodPut, collectionPath(cfg.Name), body, nil)
		var se *statusError
		switch {
		case err == nil:
			existing, found = cfg, true
		case errors.As(err, &se) && (se.Code == http.StatusConflict || se.Code == http.StatusBadRequest):
			existing, found, err = i.describe(ctx, cfg.Name)
			if err != nil {
				return unavailable(err)
			}
			if !found {
				return unavailable(se)
			}
		default:
			return unavailable(err)
		}
		i.logger.Info("created collection", "collection", cfg.Name, "dimension", cfg.Dimension)
	}

	if !existing.Equal(cfg) {
		return fmt.Errorf("%w: collection %q has dimension %d and distance %s",
			core.ErrConfigConflict, existing.Name, existing.Dimension, existing.Distance)
	}

	bound := cfg
	i.cfg = &bound
	return nil
}

func (i *Index) describe(ctx context.Context, name string) (core.CollectionConfig, bool, error) {
	var info collectionInfo
	err := i.client.do(ctx, http.MethodGet, collectionPath(name), nil, &info)
	var se *statusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return core.CollectionConfig{}, false, nil
	}
	if err != nil {
		return core.CollectionConfig{}, false, err
	}
	v := info.Config.Params.Vectors
	return core.CollectionConfig{Name: name, Dimension: v.Size, Distance: fromDistance(v.Distance)}, true, nil
}

// Config returns the collection configuration bound by Init.
func (i *Index) Config() (core.CollectionConfig, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.cfg == nil {
		return core.CollectionConfig{}, core.ErrIndexNotReady
	}
	return *i.cfg, nil
}

// Upsert sends all points in one request with wait=true. Points that already
// exist keep their original inserted_at.
func (i *Index) Upsert(ctx context.Context, points ...*core.Point) error {
	cfg, err := i.Config()
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if err := core.ValidatePoint(p, cfg.Dimension); err != nil {
			return err
		}
	}

	ids := make([]uint64, len(points))
	for n, p := range points {
		ids[n] = uint64(p.ID)
	}
	var existing []point
	err = i.client.do(ctx, http.MethodPost, collectionPath(cfg.Name, "points"),
		map[string]any{"ids": ids, "with_payload": true, "with_vector": false}, &existing)
	if err != nil {
		return unavailable(err)
	}
	insertedAt := make(map[uint64]time.Time, len(existing))
	for _, e := range existing {
		insertedAt[e.ID] = e.Payload.InsertedAt
	}

	now := time.Now().UTC()
	body := make([]point, len(points))
	for n, p := range points {
		payload := p.Payload
		if payload.InsertedAt.IsZero() {
			payload.InsertedAt = now
			if prev, ok := insertedAt[uint64(p.ID)]; ok && !prev.IsZero() {
				payload.InsertedAt = prev
			}
		}
		body[n] = point{ID: uint64(p.ID), Vector: p.Vector, Payload: payload}
	}

	err = i.client.do(ctx, http.MethodPut, collectionPath(cfg.Name, "points")+"?wait=true",
		map[string]any{"points": body}, nil)
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Search queries Qdrant and re-ranks stably by score then insertion order.
// Every point tied with the k-th score is fetched before ranking.
func (i *Index) Search(ctx context.Context, vector core.Vector, topK int, f *storage.Filter) ([]*core.SearchResult, error) {
	cfg, err := i.Config()
	if err != nil {
		return nil, err
	}
	if topK < 1 {
		return nil, core.ErrInvalidTopK
	}
	if err := core.ValidateVector(vector, cfg.Dimension); err != nil {
		return nil, err
	}

	limit := topK * 2
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  true,
	}
	if f != nil {
		if flt := documentFilter(f.DocumentID); flt != nil {
			req["filter"] = flt
		}
	}

	// Qdrant orders equal scores arbitrarily, so keep paging while a page
	// ends on the k-th score: the earliest inserted tie may be further on.
	var hits []scoredPoint
	for offset := 0; ; offset += limit {
		req["offset"] = offset
		var page []scoredPoint
		if err := i.client.do(ctx, http.MethodPost, collectionPath(cfg.Name, "points", "search"), req, &page); err != nil {
			return nil, unavailable(err)
		}
		hits = append(hits, page...)
		if len(page) < limit || len(hits) < topK || page[len(page)-1].Score != hits[topK-1].Score {
			break
		}
	}

	slices.SortStableFunc(hits, func(a, b scoredPoint) int {
		if c := a.Payload.InsertedAt.Compare(b.Payload.InsertedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Payload.SequenceIndex, b.Payload.SequenceIndex)
	})
	results := make([]*core.SearchResult, len(hits))
	for n, h := range hits {
		score := h.Score
		if cfg.Distance == core.DistanceEuclid {
			// Qdrant reports the distance itself for Euclid
			score = -score
		}
		results[n] = &core.SearchResult{
			Point: &core.Point{ID: core.PointID(h.ID), Vector: h.Vector, Payload: h.Payload},
			Score: score,
		}
	}
	return storage.Rank(results, topK), nil
}

// Count returns the exact number of points in the collection.
func (i *Index) Count(ctx context.Context) (int, error) {
	cfg, err := i.Config()
	if err != nil {
		return 0, err
	}
	return i.count(ctx, cfg.Name, nil)
}

func (i *Index) count(ctx context.Context, name string, flt *filter) (int, error) {
	req := map[string]any{"exact": true}
	if flt != nil {
		req["filter"] = flt
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := i.client.do(ctx, http.MethodPost, collectionPath(name, "points", "count"), req, &out); err != nil {
		return 0, unavailable(err)
	}
	return out.Count, nil
}

// DeleteDocument deletes by payload filter and reports how many points matched.
func (i *Index) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	cfg, err := i.Config()
	if err != nil {
		return 0, err
	}
	flt := documentFilter(documentID)
	if flt == nil {
		return 0, nil
	}

	n, err := i.count(ctx, cfg.Name, flt)
	if err != nil || n == 0 {
		return 0, err
	}
	err = i.client.do(ctx, http.MethodPost, collectionPath(cfg.Name, "points", "delete")+"?wait=true",
		map[string]any{"filter": flt}, nil)
	if err != nil {
		return 0, unavailable(err)
	}
	i.logger.Info("deleted document points", "collection", cfg.Name, "document_id", documentID, "points", n)
	return n, nil
}

// Scan pages through the collection with Qdrant's scroll API.
func (i *Index) Scan(ctx context.Context, after storage.Cursor, limit int) ([]*core.Point, storage.Cursor, error) {
	cfg, err := i.Config()
	if err != nil {
		return nil, "", err
	}
	if limit < 1 {
		return nil, "", fmt.Errorf("%w: scan limit must be positive", core.ErrInvalidTopK)
	}

	req := map[string]any{"limit": limit, "with_payload": true, "with_vector": true}
	if after != "" {
		offset, err := strconv.ParseUint(string(after), 10, 64)
		if err != nil {
			return nil, "", storage.ErrInvalidCursor
		}
		req["offset"] = offset
	}

	var out struct {
		Points         []point `json:"points"`
		NextPageOffset *uint64 `json:"next_page_offset"`
	}
	if err := i.client.do(ctx, http.MethodPost, collectionPath(cfg.Name, "points", "scroll"), req, &out); err != nil {
		return nil, "", unavailable(err)
	}

	points := make([]*core.Point, len(out.Points))
	for n, p := range out.Points {
		points[n] = &core.Point{ID: core.PointID(p.ID), Vector: p.Vector, Payload: p.Payload}
	}
	var next storage.Cursor
	if out.NextPageOffset != nil {
		next = storage.Cursor(strconv.FormatUint(*out.NextPageOffset, 10))
	}
	return points, next, nil
}

// Collections lists all collections on the server.
func (i *Index) Collections(ctx context.Context) ([]string, error) {
	var out struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := i.client.do(ctx, http.MethodGet, "/collections", nil, &out); err != nil {
		return nil, unavailable(err)
	}
	names := make([]string, len(out.Collections))
	for n, c := range out.Collections {
		names[n] = c.Name
	}
	return names, nil
}

// Close drops idle connections.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cfg = nil
	i.client.http.CloseIdleConnections()
	return nil
}

func unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
}
