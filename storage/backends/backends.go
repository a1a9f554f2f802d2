// Package backends opens a storage.VectorIndex by backend name.
package backends

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
	"github.com/poiesic/ragstream/storage/badger"
	"github.com/poiesic/ragstream/storage/bolt"
	"github.com/poiesic/ragstream/storage/qdrant"
)

const (
	Badger = "badger"
	Bolt   = "bolt"
	Qdrant = "qdrant"
	Memory = "memory"
)

// ErrUnknownBackend is returned for backend names Open does not recognize.
var ErrUnknownBackend = errors.New("unknown index backend")

// Config selects and locates a vector index.
type Config struct {
	Backend string // badger (default), bolt, qdrant or memory
	Path    string // data directory for badger, file for bolt
	URL     string // qdrant only
	APIKey  string // qdrant only
	Timeout time.Duration

	// Collection is bound with Init when Name is set.
	Collection core.CollectionConfig
}

// Open opens the configured backend and, when cfg.Collection.Name is set,
// initializes the collection. The index is closed again if Init fails.
func Open(ctx context.Context, cfg Config) (storage.VectorIndex, error) {
	var (
		idx storage.VectorIndex
		err error
	)
	switch strings.ToLower(cfg.Backend) {
	case "", Badger:
		idx, err = badger.Open(cfg.Path)
	case Memory:
		idx, err = badger.OpenMemory()
	case Bolt:
		path := cfg.Path
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "index.db")
		}
		idx, err = bolt.Open(path)
	case Qdrant:
		idx, err = qdrant.New(qdrant.Config{URL: cfg.URL, APIKey: cfg.APIKey, Timeout: cfg.Timeout})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Collection.Name == "" {
		return idx, nil
	}
	if err := idx.Init(ctx, cfg.Collection); err != nil {
		idx.Close()
		return nil, err
	}
	return idx, nil
}
