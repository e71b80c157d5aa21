// Package watcher implements the optional live-reindex feature (spec §5
// Supplemented features): an fsnotify-based recursive directory watch that
// debounces filesystem churn and reports a settled batch of changed paths,
// which the caller feeds into Store.UpsertPaths. Grounded on the teacher's
// internal/watcher (HybridWatcher + Debouncer), trimmed to fsnotify-only
// since polling fallback has no role in a single-shot CLI/MCP tool.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	photoerrors "github.com/aman-oss/photoidx/internal/errors"
)

// storeDirName is never watched, mirroring scanner's own exclusion.
const storeDirName = ".photo_index"

// Batch is a settled set of paths that changed (created, modified, or
// removed) within one debounce window. The caller re-resolves each path's
// current state (stat, or absence) rather than trusting the kind of
// fsnotify event that triggered it.
type Batch struct {
	Paths []string
}

// Watcher recursively watches a root directory and emits debounced batches
// of changed paths until its context is cancelled.
type Watcher struct {
	root     string
	debounce time.Duration
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer

	out chan Batch
}

// New starts watching root, recursively, adding any subdirectory created
// later. Events within debounce of each other are coalesced into a single
// Batch. Callers must call Close when done.
func New(root string, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, photoerrors.IOError("create filesystem watcher", err)
	}

	w := &Watcher{
		root:     root,
		debounce: debounce,
		fsw:      fsw,
		pending:  make(map[string]bool),
		out:      make(chan Batch, 4),
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	return w, nil
}

// Batches returns the channel of debounced path batches. Closed once Run
// returns.
func (w *Watcher) Batches() <-chan Batch { return w.out }

// Run drains fsnotify events until ctx is cancelled or the underlying
// watcher errors unrecoverably. Intended to run in its own goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.out)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if filepath.Base(ev.Name) == storeDirName {
		return
	}

	if ev.Op&(fsnotify.Create) != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(ev.Name)
		}
	}

	w.mu.Lock()
	w.pending[ev.Name] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
	w.mu.Unlock()
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	select {
	case w.out <- Batch{Paths: paths}:
	default:
		slog.Warn("watcher output full, dropping batch", slog.Int("batch_size", len(paths)))
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == storeDirName {
				return filepath.SkipDir
			}
			_ = w.fsw.Add(path)
		}
		return nil
	})
}
