package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
)

// Index implements storage.VectorIndex on a Badger backend.
//
// Points are stored under pt:<collection>:<seq> so a prefix scan visits them
// in insertion order; pid:<collection>:<id> maps a point ID to its sequence.
// Upserts too large for one transaction are staged first; see staging.go.
type Index struct {
	backend     *Backend
	ownsBackend bool
	logger      *slog.Logger

	mu  sync.RWMutex
	cfg *core.CollectionConfig
	seq *badger.Sequence

	// applyMu is held exclusively while a staged batch moves into place,
	// so readers never see half of one.
	applyMu sync.RWMutex
	dirty   atomic.Bool
}

var _ storage.VectorIndex = (*Index)(nil)

// NewIndex creates an uninitialized index on an existing backend.
// The caller keeps ownership of the backend.
func NewIndex(backend *Backend) *Index {
	return newIndex(backend, false)
}

func newIndex(backend *Backend, owns bool) *Index {
	return &Index{
		backend:     backend,
		ownsBackend: owns,
		logger:      slog.Default().With("component", "badger-index"),
	}
}

// Open opens a file-backed index rooted at path. Closing the index closes the database.
func Open(path string) (storage.VectorIndex, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
	}
	return newIndex(backend, true), nil
}

// Init binds the index to cfg.Name, creating the collection if needed.
func (i *Index) Init(ctx context.Context, cfg core.CollectionConfig) error {
	if err := core.ValidateCollectionConfig(cfg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.backend.IsClosed() {
		return fmt.Errorf("%w: %w", core.ErrIndexUnavailable, storage.ErrStorageClosed)
	}
	if i.cfg != nil {
		if i.cfg.Equal(cfg) {
			return nil
		}
		return fmt.Errorf("%w: index already bound to %q", core.ErrConfigConflict, i.cfg.Name)
	}

	key := makeCollectionKey(cfg.Name)
	err := i.backend.Update(func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			data, err := storage.MarshalCollection(cfg)
			if err != nil {
				return err
			}
			return tx.Set(key, data)
		case err != nil:
			return err
		}

		var existing core.CollectionConfig
		if err := item.Value(func(val []byte) error {
			existing, err = storage.UnmarshalCollection(val)
			return err
		}); err != nil {
			return err
		}
		if !existing.Equal(cfg) {
			return fmt.Errorf("%w: collection %q has dimension %d and distance %s",
				core.ErrConfigConflict, existing.Name, existing.Dimension, existing.Distance)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, core.ErrConfigConflict) {
			return err
		}
		return unavailable(err)
	}

	seq, err := i.backend.GetSequence(makeSequenceName(cfg.Name))
	if err != nil {
		return unavailable(err)
	}

	if err := i.recoverStaged(cfg, seq, true); err != nil {
		return unavailable(err)
	}

	bound := cfg
	i.cfg = &bound
	i.seq = seq
	i.logger.Debug("collection ready", "collection", cfg.Name, "dimension", cfg.Dimension)
	return nil
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

func (i *Index) ready() (core.CollectionConfig, *badger.Sequence, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.cfg == nil {
		return core.CollectionConfig{}, nil, core.ErrIndexNotReady
	}
	if i.backend.IsClosed() {
		return core.CollectionConfig{}, nil, fmt.Errorf("%w: %w", core.ErrIndexUnavailable, storage.ErrStorageClosed)
	}
	return *i.cfg, i.seq, nil
}

// Upsert writes all points atomically. Batches that fit in one transaction
// are written directly; larger ones go through a staged batch.
func (i *Index) Upsert(ctx context.Context, points ...*core.Point) error {
	cfg, seq, err := i.ready()
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
	if err := ctx.Err(); err != nil {
		return err
	}

	values := make([][]byte, len(points))
	for n, p := range points {
		values[n] = storage.MarshalPoint(p)
	}
	now := time.Now().UTC()
	if i.backend.chunkEnd(values, 0, 2) < len(values) {
		return i.upsertStaged(ctx, cfg, seq, values, now)
	}

	release, err := i.hold(cfg, seq)
	if err != nil {
		return err
	}
	defer release()

	err = i.backend.Update(func(tx *badger.Txn) error {
		for _, p := range points {
			if err := putPoint(tx, cfg.Name, seq, p, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// putPoint stores p at its existing position, or at the next sequence when
// its ID is new. A replaced point keeps its original insertion time.
func putPoint(tx *badger.Txn, collection string, seq *badger.Sequence, p *core.Point, now time.Time) error {
	idKey := makePointIDKey(collection, p.ID)
	stored := *p

	var pos uint64
	item, err := tx.Get(idKey)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		if pos, err = seq.Next(); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if err := item.Value(func(val []byte) error {
			pos = decodeSeq(val)
			return nil
		}); err != nil {
			return err
		}
		if prev, err := readPoint(tx, makePointKey(collection, pos)); err == nil && stored.Payload.InsertedAt.IsZero() {
			stored.Payload.InsertedAt = prev.Payload.InsertedAt
		}
	}
	if stored.Payload.InsertedAt.IsZero() {
		stored.Payload.InsertedAt = now
	}

	if err := tx.Set(makePointKey(collection, pos), storage.MarshalPoint(&stored)); err != nil {
		return err
	}
	return tx.Set(idKey, encodeSeq(pos))
}

// Search scores every eligible point and returns the best topK.
func (i *Index) Search(ctx context.Context, vector core.Vector, topK int, filter *storage.Filter) ([]*core.SearchResult, error) {
	cfg, seq, err := i.ready()
	if err != nil {
		return nil, err
	}
	if topK < 1 {
		return nil, core.ErrInvalidTopK
	}
	if err := core.ValidateVector(vector, cfg.Dimension); err != nil {
		return nil, err
	}
	release, err := i.hold(cfg, seq)
	if err != nil {
		return nil, err
	}
	defer release()

	var results []*core.SearchResult
	err = i.backend.View(func(tx *badger.Txn) error {
		return iteratePoints(tx, cfg.Name, nil, func(p *core.Point) (bool, error) {
			if err := ctx.Err(); err != nil {
				return false, err
			}
			if !filter.Match(p.Payload) {
				return true, nil
			}
			results = append(results, &core.SearchResult{
				Point: p,
				Score: storage.Score(cfg.Distance, vector, p.Vector),
			})
			return true, nil
		})
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return storage.Rank(results, topK), nil
}

// Count returns the number of points in the collection.
func (i *Index) Count(ctx context.Context) (int, error) {
	cfg, seq, err := i.ready()
	if err != nil {
		return 0, err
	}
	release, err := i.hold(cfg, seq)
	if err != nil {
		return 0, err
	}
	defer release()

	count := 0
	err = i.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makePointPrefix(cfg.Name)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return ctx.Err()
	})
	if err != nil {
		return 0, unavailable(err)
	}
	return count, nil
}

// DeleteDocument removes all points of documentID in one transaction.
func (i *Index) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	cfg, seq, err := i.ready()
	if err != nil {
		return 0, err
	}
	release, err := i.hold(cfg, seq)
	if err != nil {
		return 0, err
	}
	defer release()

	var removed int
	err = i.backend.Update(func(tx *badger.Txn) error {
		var keys [][]byte
		err := iteratePointEntries(tx, cfg.Name, nil, func(key []byte, p *core.Point) (bool, error) {
			if p.Payload.DocumentID == documentID {
				keys = append(keys, key, makePointIDKey(cfg.Name, p.ID))
			}
			return true, ctx.Err()
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := tx.Delete(k); err != nil {
				return err
			}
		}
		removed = len(keys) / 2
		return nil
	})
	if err != nil {
		return 0, unavailable(err)
	}
	if removed > 0 {
		i.logger.Info("deleted document points", "collection", cfg.Name, "document_id", documentID, "points", removed)
	}
	return removed, nil
}

// Scan pages through points in insertion order.
func (i *Index) Scan(ctx context.Context, after storage.Cursor, limit int) ([]*core.Point, storage.Cursor, error) {
	cfg, seq, err := i.ready()
	if err != nil {
		return nil, "", err
	}
	if limit < 1 {
		return nil, "", fmt.Errorf("%w: scan limit must be positive", core.ErrInvalidTopK)
	}
	pos, hasCursor, err := seqFromCursor(after)
	if err != nil {
		return nil, "", err
	}

	var start []byte
	if hasCursor {
		start = makePointKey(cfg.Name, pos+1)
	}
	release, err := i.hold(cfg, seq)
	if err != nil {
		return nil, "", err
	}
	defer release()

	var (
		points  []*core.Point
		lastSeq uint64
		next    storage.Cursor
	)
	err = i.backend.View(func(tx *badger.Txn) error {
		return iteratePointEntries(tx, cfg.Name, start, func(key []byte, p *core.Point) (bool, error) {
			if len(points) == limit {
				// another point exists beyond this page
				next = cursorFromSeq(lastSeq)
				return false, nil
			}
			points = append(points, p)
			lastSeq = seqFromPointKey(key)
			return true, ctx.Err()
		})
	})
	if err != nil {
		return nil, "", unavailable(err)
	}
	return points, next, nil
}

// Collections lists every collection stored in the backend.
func (i *Index) Collections(ctx context.Context) ([]string, error) {
	if i.backend.IsClosed() {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexUnavailable, storage.ErrStorageClosed)
	}
	var names []string
	err := i.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(collectionPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			names = append(names, strings.TrimPrefix(string(iter.Item().Key()), collectionPrefix))
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return names, nil
}

// Close unbinds the index and, for indexes created by Open, closes the database.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.seq = nil
	i.cfg = nil
	if i.ownsBackend && !i.backend.IsClosed() {
		return i.backend.Close()
	}
	return nil
}

func iteratePoints(tx *badger.Txn, collection string, start []byte, fn func(*core.Point) (bool, error)) error {
	return iteratePointEntries(tx, collection, start, func(_ []byte, p *core.Point) (bool, error) {
		return fn(p)
	})
}

// iteratePointEntries visits points in insertion order beginning at start
// (or the first point when start is nil) until fn returns false or an error.
func iteratePointEntries(tx *badger.Txn, collection string, start []byte, fn func(key []byte, p *core.Point) (bool, error)) error {
	prefix := makePointPrefix(collection)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	if start == nil {
		start = prefix
	}
	for iter.Seek(start); iter.ValidForPrefix(prefix); iter.Next() {
		item := iter.Item()
		key := item.KeyCopy(nil)
		var p *core.Point
		if err := item.Value(func(val []byte) error {
			var err error
			p, err = storage.UnmarshalPoint(val)
			return err
		}); err != nil {
			return err
		}
		more, err := fn(key, p)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

func readPoint(tx *badger.Txn, key []byte) (*core.Point, error) {
	item, err := tx.Get(key)
	if err != nil {
		return nil, err
	}
	var p *core.Point
	err = item.Value(func(val []byte) error {
		p, err = storage.UnmarshalPoint(val)
		return err
	})
	return p, err
}

func unavailable(err error) error {
	if errors.Is(err, core.ErrIndexUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, badger.ErrDBClosed) {
		err = fmt.Errorf("%w: %w", storage.ErrStorageClosed, err)
	}
	return fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
}
