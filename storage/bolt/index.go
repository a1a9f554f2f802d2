package bolt

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
	bolt "go.etcd.io/bbolt"
)

const collectionPrefix = "collection:"

var (
	bucketMeta   = []byte("meta")
	bucketPoints = []byte("points")
	bucketIDs    = []byte("ids")
	keyConfig    = []byte("config")
)

// Index implements storage.VectorIndex on a single bbolt file.
//
// Each collection is a top-level bucket holding a meta bucket with the
// configuration, a points bucket keyed by NextSequence (insertion order) and
// an ids bucket mapping point IDs to their sequence key.
type Index struct {
	db     *bolt.DB
	logger *slog.Logger

	mu  sync.RWMutex
	cfg *core.CollectionConfig
}

var _ storage.VectorIndex = (*Index)(nil)

// Open opens or creates the bbolt file at path.
func Open(path string) (storage.VectorIndex, error) {
	return open(path)
}

func open(path string) (*Index, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open bolt file: %w", core.ErrIndexUnavailable, err)
	}
	return &Index{
		db:     db,
		logger: slog.Default().With("component", "bolt-index"),
	}, nil
}

func collectionBucket(name string) []byte {
	return []byte(collectionPrefix + name)
}

func seqKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, seq)
}

func idKey(id core.PointID) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(id))
}

// Init binds the index to cfg.Name, creating the collection buckets if needed.
func (i *Index) Init(ctx context.Context, cfg core.CollectionConfig) error {
	if err := core.ValidateCollectionConfig(cfg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
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

	err := i.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(collectionBucket(cfg.Name))
		if root != nil {
			meta := root.Bucket(bucketMeta)
			if meta == nil {
				return fmt.Errorf("%w: collection %q has no meta bucket", storage.ErrSerializationFailed, cfg.Name)
			}
			existing, err := storage.UnmarshalCollection(meta.Get(keyConfig))
			if err != nil {
				return err
			}
			if !existing.Equal(cfg) {
				return fmt.Errorf("%w: collection %q has dimension %d and distance %s",
					core.ErrConfigConflict, existing.Name, existing.Dimension, existing.Distance)
			}
			return nil
		}

		root, err := tx.CreateBucket(collectionBucket(cfg.Name))
		if err != nil {
			return err
		}
		meta, err := root.CreateBucket(bucketMeta)
		if err != nil {
			return err
		}
		if _, err := root.CreateBucket(bucketPoints); err != nil {
			return err
		}
		if _, err := root.CreateBucket(bucketIDs); err != nil {
			return err
		}
		data, err := storage.MarshalCollection(cfg)
		if err != nil {
			return err
		}
		return meta.Put(keyConfig, data)
	})
	if err != nil {
		if errors.Is(err, core.ErrConfigConflict) {
			return err
		}
		return unavailable(err)
	}

	bound := cfg
	i.cfg = &bound
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

func (i *Index) buckets(tx *bolt.Tx, name string) (points, ids *bolt.Bucket, err error) {
	root := tx.Bucket(collectionBucket(name))
	if root == nil {
		return nil, nil, fmt.Errorf("%w: collection %q disappeared", core.ErrIndexUnavailable, name)
	}
	return root.Bucket(bucketPoints), root.Bucket(bucketIDs), nil
}

// Upsert writes all points in one bbolt transaction.
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
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now().UTC()
	err = i.db.Update(func(tx *bolt.Tx) error {
		pb, ib, err := i.buckets(tx, cfg.Name)
		if err != nil {
			return err
		}
		for _, p := range points {
			stored := *p
			key := ib.Get(idKey(p.ID))
			if key == nil {
				seq, err := pb.NextSequence()
				if err != nil {
					return err
				}
				key = seqKey(seq)
			} else {
				key = append([]byte(nil), key...)
				if prev := pb.Get(key); prev != nil && stored.Payload.InsertedAt.IsZero() {
					if old, err := storage.UnmarshalPoint(prev); err == nil {
						stored.Payload.InsertedAt = old.Payload.InsertedAt
					}
				}
			}
			if stored.Payload.InsertedAt.IsZero() {
				stored.Payload.InsertedAt = now
			}
			if err := pb.Put(key, storage.MarshalPoint(&stored)); err != nil {
				return err
			}
			if err := ib.Put(idKey(p.ID), key); err != nil {
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

// Search scores every eligible point and returns the best topK.
func (i *Index) Search(ctx context.Context, vector core.Vector, topK int, filter *storage.Filter) ([]*core.SearchResult, error) {
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

	var results []*core.SearchResult
	err = i.db.View(func(tx *bolt.Tx) error {
		pb, _, err := i.buckets(tx, cfg.Name)
		if err != nil {
			return err
		}
		return pb.ForEach(func(_, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := storage.UnmarshalPoint(v)
			if err != nil {
				return err
			}
			if !filter.Match(p.Payload) {
				return nil
			}
			results = append(results, &core.SearchResult{
				Point: p,
				Score: storage.Score(cfg.Distance, vector, p.Vector),
			})
			return nil
		})
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return storage.Rank(results, topK), nil
}

// Count returns the number of points in the collection.
func (i *Index) Count(ctx context.Context) (int, error) {
	cfg, err := i.Config()
	if err != nil {
		return 0, err
	}
	var n int
	err = i.db.View(func(tx *bolt.Tx) error {
		pb, _, err := i.buckets(tx, cfg.Name)
		if err != nil {
			return err
		}
		n = pb.Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// DeleteDocument removes all points of documentID in one transaction.
func (i *Index) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	cfg, err := i.Config()
	if err != nil {
		return 0, err
	}

	var removed int
	err = i.db.Update(func(tx *bolt.Tx) error {
		pb, ib, err := i.buckets(tx, cfg.Name)
		if err != nil {
			return err
		}
		type victim struct {
			key []byte
			id  core.PointID
		}
		var victims []victim
		err = pb.ForEach(func(k, v []byte) error {
			p, err := storage.UnmarshalPoint(v)
			if err != nil {
				return err
			}
			if p.Payload.DocumentID == documentID {
				victims = append(victims, victim{key: append([]byte(nil), k...), id: p.ID})
			}
			return ctx.Err()
		})
		if err != nil {
			return err
		}
		// deleting while iterating with ForEach is not allowed
		for _, vic := range victims {
			if err := pb.Delete(vic.key); err != nil {
				return err
			}
			if err := ib.Delete(idKey(vic.id)); err != nil {
				return err
			}
		}
		removed = len(victims)
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
	cfg, err := i.Config()
	if err != nil {
		return nil, "", err
	}
	if limit < 1 {
		return nil, "", fmt.Errorf("%w: scan limit must be positive", core.ErrInvalidTopK)
	}

	var start []byte
	if after != "" {
		seq, err := strconv.ParseUint(string(after), 10, 64)
		if err != nil {
			return nil, "", storage.ErrInvalidCursor
		}
		start = seqKey(seq + 1)
	}

	var (
		points []*core.Point
		next   storage.Cursor
	)
	err = i.db.View(func(tx *bolt.Tx) error {
		pb, _, err := i.buckets(tx, cfg.Name)
		if err != nil {
			return err
		}
		c := pb.Cursor()
		var k, v []byte
		if start == nil {
			k, v = c.First()
		} else {
			k, v = c.Seek(start)
		}
		var last uint64
		for ; k != nil; k, v = c.Next() {
			if len(points) == limit {
				next = storage.Cursor(strconv.FormatUint(last, 10))
				return nil
			}
			p, err := storage.UnmarshalPoint(v)
			if err != nil {
				return err
			}
			points = append(points, p)
			last = binary.BigEndian.Uint64(k)
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, "", unavailable(err)
	}
	return points, next, nil
}

// Collections lists every collection stored in the file.
func (i *Index) Collections(ctx context.Context) ([]string, error) {
	var names []string
	err := i.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if n, ok := strings.CutPrefix(string(name), collectionPrefix); ok {
				names = append(names, n)
			}
			return ctx.Err()
		})
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return names, nil
}

// Close closes the bbolt file.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cfg = nil
	return i.db.Close()
}

func unavailable(err error) error {
	if errors.Is(err, core.ErrIndexUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		err = fmt.Errorf("%w: %w", storage.ErrStorageClosed, err)
	}
	return fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
}
