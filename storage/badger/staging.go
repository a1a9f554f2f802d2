package badger

import (
	"context"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/storage"
)

// Upserts larger than one Badger transaction are written in three steps:
//
//  1. every point is staged under stg:<collection>:<batch>:<n>, across as
//     many transactions as needed; readers never look at these keys
//  2. cmt:<collection>:<batch> is written in one small transaction, the
//     point after which the batch is durable
//  3. staged points move into place chunk by chunk while applyMu is held
//     exclusively, then the commit marker is removed
//
// Init finishes committed batches left behind by a crash and drops batches
// that never reached step 2.

func (i *Index) upsertStaged(ctx context.Context, cfg core.CollectionConfig, seq *badger.Sequence, values [][]byte, now time.Time) error {
	batch := uuid.NewString()
	i.backend.beginStage(batch)
	defer i.backend.endStage(batch)

	for start := 0; start < len(values); {
		if err := ctx.Err(); err != nil {
			i.abandon(cfg.Name, batch)
			return err
		}
		end := i.backend.chunkEnd(values, start, 1)
		err := i.backend.Update(func(tx *badger.Txn) error {
			for n := start; n < end; n++ {
				if err := tx.Set(makeStageKey(cfg.Name, batch, uint64(n)), values[n]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			i.abandon(cfg.Name, batch)
			return unavailable(err)
		}
		start = end
	}

	err := i.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeCommitKey(cfg.Name, batch), encodeSeq(uint64(len(values))))
	})
	if err != nil {
		i.abandon(cfg.Name, batch)
		return unavailable(err)
	}

	i.applyMu.Lock()
	defer i.applyMu.Unlock()
	if err := i.applyStaged(cfg.Name, seq, batch, now); err != nil {
		// committed but not fully applied; the next reader finishes it
		i.dirty.Store(true)
		return unavailable(err)
	}
	i.logger.Debug("applied staged upsert", "collection", cfg.Name, "points", len(values), "batch", batch)
	return nil
}

// applyStaged moves a committed batch into place. Each chunk deletes the
// staged keys it applies, so an interrupted apply resumes where it stopped.
// The caller must hold applyMu exclusively.
func (i *Index) applyStaged(collection string, seq *badger.Sequence, batch string, now time.Time) error {
	prefix := makeStagePrefix(collection, batch)
	maxSize, maxCount := i.backend.txnBudget()

	for {
		var moved int
		err := i.backend.Update(func(tx *badger.Txn) error {
			var keys, values [][]byte
			var size, count int64

			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			iter := tx.NewIterator(opts)
			for iter.Rewind(); iter.Valid(); iter.Next() {
				item := iter.Item()
				val, err := item.ValueCopy(nil)
				if err != nil {
					iter.Close()
					return err
				}
				// point, point ID and staged key
				size += int64(len(val)) + 3*entryOverhead
				count += 3
				if len(keys) > 0 && (size >= maxSize || count >= maxCount) {
					break
				}
				keys = append(keys, item.KeyCopy(nil))
				values = append(values, val)
			}
			iter.Close()

			for n, val := range values {
				p, err := storage.UnmarshalPoint(val)
				if err != nil {
					return err
				}
				if err := putPoint(tx, collection, seq, p, now); err != nil {
					return err
				}
				if err := tx.Delete(keys[n]); err != nil {
					return err
				}
			}
			moved = len(keys)
			return nil
		})
		if err != nil {
			return err
		}
		if moved == 0 {
			break
		}
	}

	return i.backend.Update(func(tx *badger.Txn) error {
		return tx.Delete(makeCommitKey(collection, batch))
	})
}

// recoverStaged finishes every committed batch of the collection. With
// discard set it also drops staged points of batches that were never
// committed, skipping batches this process is still writing.
func (i *Index) recoverStaged(cfg core.CollectionConfig, seq *badger.Sequence, discard bool) error {
	i.applyMu.Lock()
	defer i.applyMu.Unlock()

	var committed []string
	staged := make(map[string]bool)
	err := i.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(commitPrefix + cfg.Name + ":")
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			committed = append(committed, strings.TrimPrefix(string(iter.Item().Key()), string(opts.Prefix)))
		}
		iter.Close()

		if !discard {
			return nil
		}
		opts.Prefix = []byte(stagePrefix + cfg.Name + ":")
		iter = tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			staged[batchFromStageKey(cfg.Name, iter.Item().Key())] = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, batch := range committed {
		delete(staged, batch)
		if i.backend.isStaging(batch) {
			continue
		}
		if err := i.applyStaged(cfg.Name, seq, batch, now); err != nil {
			return err
		}
		i.logger.Warn("finished interrupted upsert", "collection", cfg.Name, "batch", batch)
	}
	for batch := range staged {
		if i.backend.isStaging(batch) {
			continue
		}
		if err := i.discardStaged(cfg.Name, batch); err != nil {
			return err
		}
		i.logger.Warn("discarded incomplete upsert", "collection", cfg.Name, "batch", batch)
	}
	i.dirty.Store(false)
	return nil
}

func (i *Index) discardStaged(collection, batch string) error {
	var keys [][]byte
	err := i.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeStagePrefix(collection, batch)
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	for start := 0; start < len(keys); {
		end := i.backend.chunkEnd(keys, start, 1)
		err := i.backend.Update(func(tx *badger.Txn) error {
			for _, key := range keys[start:end] {
				if err := tx.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		start = end
	}
	return nil
}

func (i *Index) abandon(collection, batch string) {
	if err := i.discardStaged(collection, batch); err != nil {
		i.logger.Warn("failed to discard staged points", "collection", collection, "batch", batch, "error", err)
	}
}

// hold takes applyMu for reading, first finishing any batch a failed apply
// left behind. The returned func releases it.
func (i *Index) hold(cfg core.CollectionConfig, seq *badger.Sequence) (func(), error) {
	if i.dirty.Load() {
		if err := i.recoverStaged(cfg, seq, false); err != nil {
			return nil, unavailable(err)
		}
	}
	i.applyMu.RLock()
	return i.applyMu.RUnlock, nil
}
