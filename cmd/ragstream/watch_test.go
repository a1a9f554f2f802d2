package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/poiesic/ragstream/core"
	"github.com/poiesic/ragstream/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndexer struct {
	mu       sync.Mutex
	ingested []pipeline.IngestRequest
	deleted  []string
}

func (f *fakeIndexer) Ingest(_ context.Context, req pipeline.IngestRequest) (*pipeline.IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingested = append(f.ingested, req)
	return &pipeline.IngestResult{Document: core.Document{ID: req.DocumentID}, ChunkCount: 1}, nil
}

func (f *fakeIndexer) DeleteDocument(_ context.Context, documentID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, documentID)
	return 1, nil
}

func (f *fakeIndexer) ingestedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, len(f.ingested))
	for i, r := range f.ingested {
		ids[i] = r.DocumentID
	}
	return ids
}

func (f *fakeIndexer) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		op   fsnotify.Op
		want changeKind
	}{
		{fsnotify.Create, changeUpsert},
		{fsnotify.Write, changeUpsert},
		{fsnotify.Remove, changeDelete},
		{fsnotify.Rename, changeDelete},
		{fsnotify.Chmod, changeNone},
		{fsnotify.Create | fsnotify.Remove, changeDelete},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, classify(fsnotify.Event{Name: "x.txt", Op: tt.op}))
		})
	}
}

func TestDirWatcherDebounce(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "notes.txt", "sub/plan.md")

	idx := &fakeIndexer{}
	var out bytes.Buffer
	w := newDirWatcher(root, newFileFilter(nil, nil), idx, time.Second, &out)
	ctx := context.Background()
	t0 := time.Now()

	w.handle(fsnotify.Event{Name: filepath.Join(root, "notes.txt"), Op: fsnotify.Write}, t0)
	w.handle(fsnotify.Event{Name: filepath.Join(root, "notes.txt"), Op: fsnotify.Write}, t0.Add(800*time.Millisecond))
	w.handle(fsnotify.Event{Name: filepath.Join(root, "image.png"), Op: fsnotify.Create}, t0)
	w.handle(fsnotify.Event{Name: filepath.Join(root, "notes.txt"), Op: fsnotify.Chmod}, t0.Add(900*time.Millisecond))
	assert.Len(t, w.pending, 1)

	w.flush(ctx, t0.Add(1500*time.Millisecond))
	assert.Empty(t, idx.ingestedIDs(), "the last write is still settling")

	w.flush(ctx, t0.Add(2*time.Second))
	assert.Equal(t, []string{"notes.txt"}, idx.ingestedIDs())
	assert.Equal(t, []string{"notes.txt"}, idx.deletedIDs(), "path ids replace the earlier version")
	assert.Contains(t, out.String(), "Indexed notes.txt (1 chunks)")
	assert.Empty(t, w.pending)

	t.Run("removal", func(t *testing.T) {
		path := filepath.Join(root, "sub", "plan.md")
		require.NoError(t, os.Remove(path))
		w.handle(fsnotify.Event{Name: path, Op: fsnotify.Remove}, t0)
		w.flush(ctx, t0.Add(2*time.Second))
		assert.Equal(t, []string{"notes.txt", "sub/plan.md"}, idx.deletedIDs())
		assert.Contains(t, out.String(), "Removed sub/plan.md")
	})

	t.Run("write to a file that is gone becomes a removal", func(t *testing.T) {
		w.handle(fsnotify.Event{Name: filepath.Join(root, "ghost.txt"), Op: fsnotify.Create}, t0)
		w.flush(ctx, t0.Add(2*time.Second))
		assert.Contains(t, idx.deletedIDs(), "ghost.txt")
		assert.Equal(t, []string{"notes.txt"}, idx.ingestedIDs())
	})
}

func TestDirWatcherIndexAll(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.txt", "sub/b.csv", "skip.bin")

	idx := &fakeIndexer{}
	w := newDirWatcher(root, newFileFilter(nil, nil), idx, time.Second, &bytes.Buffer{})
	require.NoError(t, w.indexAll(context.Background()))
	assert.ElementsMatch(t, []string{"a.txt", "sub/b.csv"}, idx.ingestedIDs())
}

func TestDirWatcherRun(t *testing.T) {
	root := t.TempDir()
	idx := &fakeIndexer{}
	var out syncBuffer
	w := newDirWatcher(root, newFileFilter(nil, nil), idx, 100*time.Millisecond, &out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the root.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "live.md"), []byte("# live"), 0o644))

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"live.md"}, idx.ingestedIDs())
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

// syncBuffer is a bytes.Buffer safe for use from the watcher goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}
