// Package watch re-runs stages when their source files change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/assetpipe/internal/assetfs"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Reloader is told about successful rebuilds.
type Reloader interface {
	Broadcast(hash string)
}

// RebuildFunc runs the stages of one binding.
type RebuildFunc func(ctx context.Context, b Binding) error

// Watcher observes Root and dispatches changes to bindings. Each binding
// has at most one rebuild in flight; changes arriving during a rebuild
// queue exactly one follow-up.
type Watcher struct {
	Root     string
	Bindings []Binding
	// Debounce is the quiet window before a rebuild starts; zero disables.
	Debounce time.Duration
	Rebuild  RebuildFunc
	Reloader Reloader
	Logger   *slog.Logger
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	logger := w.logger()
	if fi, err := os.Stat(w.Root); err != nil || !fi.IsDir() {
		return fmt.Errorf("watch root %s is not a directory", w.Root)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = fw.Close() }()
	addDirsRecursive(fw, w.Root, logger)

	workers := make([]*worker, len(w.Bindings))
	var wg sync.WaitGroup
	for i, b := range w.Bindings {
		workers[i] = newWorker(b, w.Debounce)
		wg.Add(1)
		go func(wk *worker) {
			defer wg.Done()
			wk.loop(ctx, w.rebuild)
		}(workers[i])
	}
	logger.Info("Watching for changes", logfields.Path(w.Root), slog.Int("bindings", len(workers)))

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				wg.Wait()
				return nil
			}
			w.handle(fw, ev, workers)
		case err, ok := <-fw.Errors:
			if !ok {
				wg.Wait()
				return nil
			}
			logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

func (w *Watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event, workers []*worker) {
	if shouldIgnoreEvent(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			addDirsRecursive(fw, ev.Name, w.logger())
			// Files may land before the directory is watched.
			_ = filepath.WalkDir(ev.Name, func(p string, d os.DirEntry, err error) error {
				if err == nil && !d.IsDir() {
					w.dispatch(p, workers)
				}
				return nil
			})
			return
		}
	}
	w.dispatch(ev.Name, workers)
}

func (w *Watcher) dispatch(path string, workers []*worker) {
	rel, err := filepath.Rel(w.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)
	for _, wk := range workers {
		if wk.matches(rel) {
			w.logger().Debug("File change detected", logfields.Path(rel), logfields.Binding(wk.binding.Name))
			wk.notify()
		}
	}
}

func (w *Watcher) rebuild(ctx context.Context, b Binding) {
	logger := w.logger()
	if w.Rebuild == nil {
		return
	}
	if err := w.Rebuild(ctx, b); err != nil {
		if ctx.Err() == nil {
			logger.Warn("Rebuild failed", logfields.Binding(b.Name), logfields.Error(err))
		}
		return
	}
	if w.Reloader != nil {
		w.Reloader.Broadcast(uuid.NewString())
	}
}

type worker struct {
	binding  Binding
	debounce time.Duration
	trigger  chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

func newWorker(b Binding, debounce time.Duration) *worker {
	return &worker{binding: b, debounce: debounce, trigger: make(chan struct{}, 1)}
}

func (wk *worker) matches(rel string) bool {
	for _, p := range wk.binding.Patterns {
		if assetfs.Match(p, rel) {
			return true
		}
	}
	return false
}

// notify requests a rebuild. The one-slot trigger channel is the pending
// flag: requests made while one is queued collapse into it.
func (wk *worker) notify() {
	if wk.debounce <= 0 {
		wk.fire()
		return
	}
	wk.mu.Lock()
	defer wk.mu.Unlock()
	if wk.timer != nil {
		wk.timer.Stop()
	}
	wk.timer = time.AfterFunc(wk.debounce, wk.fire)
}

func (wk *worker) fire() {
	select {
	case wk.trigger <- struct{}{}:
	default:
	}
}

func (wk *worker) loop(ctx context.Context, run func(context.Context, Binding)) {
	for {
		select {
		case <-ctx.Done():
			wk.mu.Lock()
			if wk.timer != nil {
				wk.timer.Stop()
			}
			wk.mu.Unlock()
			return
		case <-wk.trigger:
			run(ctx, wk.binding)
		}
	}
}

func addDirsRecursive(w *fsnotify.Watcher, root string, logger *slog.Logger) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if err := w.Add(path); err != nil {
				logger.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}

// shouldIgnoreEvent reports hidden, editor temp and OS metadata files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasSuffix(base, ".tmp") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db"
}
