package storage

import (
	"context"

	"github.com/poiesic/ragstream/core"
)

// Filter restricts which points are eligible in a search.
// A nil Filter or a zero value matches every point.
type Filter struct {
	DocumentID string
}

// Match reports whether a payload passes the filter.
func (f *Filter) Match(p core.Payload) bool {
	if f == nil || f.DocumentID == "" {
		return true
	}
	return p.DocumentID == f.DocumentID
}

// Cursor is an opaque scan position. The empty Cursor means "from the
// beginning" when passed to Scan and "no more points" when returned.
type Cursor string

// VectorIndex stores points in a single named collection and answers
// similarity queries against it.
//
// An index starts Uninitialized. Init binds it to a collection and moves it
// to Ready; every other operation except Collections and Close returns
// core.ErrIndexNotReady until then. Backend failures are reported as
// core.ErrIndexUnavailable, never as an empty result.
//
// Implementations must be thread-safe and support concurrent access.
type VectorIndex interface {
	// Init ensures the collection exists with the given configuration.
	// An existing collection with the same configuration is reused; one
	// configured differently yields core.ErrConfigConflict and is left untouched.
	Init(ctx context.Context, cfg core.CollectionConfig) error

	// Upsert inserts or replaces points by ID. Either all points become
	// visible or none do. A replaced point keeps its insertion position.
	Upsert(ctx context.Context, points ...*core.Point) error

	// Search returns at most topK points ordered by similarity, highest
	// first. Ties are broken by insertion order.
	Search(ctx context.Context, vector core.Vector, topK int, filter *Filter) ([]*core.SearchResult, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context) (int, error)

	// DeleteDocument removes every point whose payload belongs to documentID
	// and returns how many were removed.
	DeleteDocument(ctx context.Context, documentID string) (int, error)

	// Scan returns up to limit points in insertion order, starting after the
	// given cursor, together with the cursor for the next page.
	Scan(ctx context.Context, after Cursor, limit int) ([]*core.Point, Cursor, error)

	// Collections lists the names of all collections known to the backend.
	Collections(ctx context.Context) ([]string, error)

	// Config returns the collection configuration bound by Init.
	Config() (core.CollectionConfig, error)

	// Close releases resources held by the index.
	Close() error
}
