package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v2"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Keep the index in sync with a directory, using relative paths as document IDs",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Doublestar patterns selecting watched files",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Doublestar patterns excluding watched files",
			},
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "Wait this long after the last change to a file before indexing it",
				Value: 500 * time.Millisecond,
			},
			&cli.BoolFlag{
				Name:  "initial",
				Usage: "Index every matching file once before watching",
			},
		},
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one directory is required")
	}
	root := c.Args().First()
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", root)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEngine(ctx, c)
	if err != nil {
		return err
	}
	defer e.Close()

	w := newDirWatcher(root, newFileFilter(c.StringSlice("include"), c.StringSlice("exclude")),
		e.Pipeline(), c.Duration("debounce"), c.App.Writer)
	if c.Bool("initial") {
		if err := w.indexAll(ctx); err != nil {
			return err
		}
	}
	fmt.Fprintf(c.App.Writer, "Watching %s (Ctrl-C to stop)\n", root)
	return w.Run(ctx)
}

type changeKind int

const (
	changeNone changeKind = iota
	changeUpsert
	changeDelete
)

// classify maps a filesystem event to the index change it calls for.
// Chmod is ignored; a rename is seen as removal of the old name.
func classify(ev fsnotify.Event) changeKind {
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return changeDelete
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		return changeUpsert
	}
	return changeNone
}

type pendingChange struct {
	kind changeKind
	seen time.Time
}

// dirWatcher debounces filesystem events and applies them to the index.
// All state is owned by the Run goroutine.
type dirWatcher struct {
	root     string
	filter   *fileFilter
	ingester *fileIngester
	debounce time.Duration
	out      io.Writer
	logger   *slog.Logger
	pending  map[string]pendingChange
}

func newDirWatcher(root string, filter *fileFilter, index documentIndexer, debounce time.Duration, out io.Writer) *dirWatcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &dirWatcher{
		root:     root,
		filter:   filter,
		ingester: &fileIngester{pipeline: index, pathIDs: true},
		debounce: debounce,
		out:      out,
		logger:   slog.Default().With("component", "watch"),
		pending:  make(map[string]pendingChange),
	}
}

// Run watches until ctx is cancelled. Pending changes are dropped on exit.
func (w *dirWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.root); err != nil {
		return err
	}

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(watcher, ev.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "dir", ev.Name, "err", err)
					}
					continue
				}
			}
			w.handle(ev, time.Now())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "err", err)
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *dirWatcher) addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, _ := filepath.Rel(w.root, path); rel != "." && w.filter.skipDir(rel) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// handle records ev if it concerns a matching file. A later event for the
// same file replaces an earlier one.
func (w *dirWatcher) handle(ev fsnotify.Event, now time.Time) {
	kind := classify(ev)
	if kind == changeNone {
		return
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || !w.filter.match(rel) {
		return
	}
	w.pending[filepath.ToSlash(rel)] = pendingChange{kind: kind, seen: now}
}

// flush applies the changes that have been quiet for the debounce period.
func (w *dirWatcher) flush(ctx context.Context, now time.Time) {
	for rel, change := range w.pending {
		if now.Sub(change.seen) < w.debounce {
			continue
		}
		delete(w.pending, rel)
		w.apply(ctx, rel, change.kind)
	}
}

func (w *dirWatcher) apply(ctx context.Context, rel string, kind changeKind) {
	path := filepath.Join(w.root, filepath.FromSlash(rel))
	if kind == changeUpsert {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			kind = changeDelete
		}
	}

	switch kind {
	case changeDelete:
		n, err := w.ingester.pipeline.DeleteDocument(ctx, rel)
		if err != nil {
			w.logger.Error("failed to delete document", "document_id", rel, "err", err)
			return
		}
		fmt.Fprintf(w.out, "Removed %s (%d chunks)\n", rel, n)
	case changeUpsert:
		res, err := w.ingester.ingest(ctx, sourceFile{Path: path, Rel: rel}, "", "")
		if err != nil {
			w.logger.Error("failed to ingest file", "path", path, "err", err)
			return
		}
		fmt.Fprintf(w.out, "Indexed %s (%d chunks)\n", rel, res.ChunkCount)
	}
}

func (w *dirWatcher) indexAll(ctx context.Context) error {
	files, err := collectFiles([]string{w.root}, w.filter)
	if err != nil {
		return err
	}
	for _, f := range files {
		w.apply(ctx, f.Rel, changeUpsert)
	}
	return nil
}
