package badger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const (
	defaultSequenceBandwidth = 100

	// maxTxnAttempts bounds retries of read-write transactions that lose a
	// conflict against a concurrent writer.
	maxTxnAttempts = 5
)

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger

	seqMu     sync.Mutex
	sequences map[string]*badger.Sequence

	stageMu sync.Mutex
	staging map[string]struct{}
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist. With inMemory set the path is ignored.
func OpenBackend(filePath string, inMemory bool) (*Backend, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// Ensure directory exists
		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filePath, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(filePath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	logger := slog.Default().With("component", "badger")
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:        db,
		logger:    logger,
		sequences: make(map[string]*badger.Sequence),
		staging:   make(map[string]struct{}),
	}, nil
}

// Close releases all sequences and closes the BadgerDB database.
func (b *Backend) Close() error {
	b.seqMu.Lock()
	var errs []error
	for name, seq := range b.sequences {
		errs = append(errs, seq.Release())
		delete(b.sequences, name)
	}
	b.seqMu.Unlock()

	errs = append(errs, b.db.Close())
	return errors.Join(errs...)
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction.
// The transaction is automatically discarded if fn returns an error.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// GetSequence returns the BadgerDB sequence for name, creating it on first use.
// Sequences are shared by every caller on this backend and released by Close,
// since two leases on one key would hand out overlapping ranges.
func (b *Backend) GetSequence(name string) (*badger.Sequence, error) {
	b.seqMu.Lock()
	defer b.seqMu.Unlock()

	if seq, ok := b.sequences[name]; ok {
		return seq, nil
	}

	var (
		seq *badger.Sequence
		err error
	)
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		seq, err = b.db.GetSequence([]byte(name), defaultSequenceBandwidth)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	b.sequences[name] = seq
	return seq, nil
}

// Update runs fn in a read-write transaction and commits it. Transactions
// that lose a conflict are retried from scratch, so fn must be idempotent.
func (b *Backend) Update(fn func(tx *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		err = b.WithTx(func(tx *badger.Txn) error {
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		b.logger.Debug("transaction conflict, retrying", "attempt", attempt+1)
	}
	return err
}

// View runs fn in a read-only transaction.
func (b *Backend) View(fn func(tx *badger.Txn) error) error {
	return b.WithTx(fn, false)
}

// txnBudget returns the bytes and entries one transaction may carry, with
// headroom left under Badger's own limits for key versions and metadata.
func (b *Backend) txnBudget() (size, count int64) {
	return b.db.MaxBatchSize() / 2, b.db.MaxBatchCount() / 2
}

// chunkEnd returns the end of the longest run of values starting at start
// that fits in one transaction when each value is written alongside
// perValue entries. A run always holds at least one value.
func (b *Backend) chunkEnd(values [][]byte, start int, perValue int64) int {
	maxSize, maxCount := b.txnBudget()
	var size, count int64
	end := start
	for end < len(values) {
		size += int64(len(values[end])) + perValue*entryOverhead
		count += perValue
		if end > start && (size >= maxSize || count >= maxCount) {
			break
		}
		end++
	}
	return end
}

// entryOverhead approximates a key plus Badger's per-entry bookkeeping.
const entryOverhead = 96

// beginStage marks batch as being written by this process so recovery
// leaves its staged points alone.
func (b *Backend) beginStage(batch string) {
	b.stageMu.Lock()
	defer b.stageMu.Unlock()
	b.staging[batch] = struct{}{}
}

func (b *Backend) endStage(batch string) {
	b.stageMu.Lock()
	defer b.stageMu.Unlock()
	delete(b.staging, batch)
}

func (b *Backend) isStaging(batch string) bool {
	b.stageMu.Lock()
	defer b.stageMu.Unlock()
	_, ok := b.staging[batch]
	return ok
}
