package library

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/desertthunder/crate/internal/shared"
)

// DefaultSettle is how long a file must stay quiet before the watcher acts on it.
const DefaultSettle = 500 * time.Millisecond

// Watcher keeps the catalog in step with files copied into or removed from the songs directory by hand.
type Watcher struct {
	lib    *Library
	fsw    *fsnotify.Watcher
	settle time.Duration
	logger *log.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// NewWatcher starts watching the library's songs directory. Call [Watcher.Run] to process events.
func NewWatcher(lib *Library, settle time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, shared.Storage("create watcher", err)
	}

	if err := fsw.Add(lib.blobs.Root()); err != nil {
		fsw.Close()
		return nil, shared.Storage("watch songs directory", err)
	}

	if settle <= 0 {
		settle = DefaultSettle
	}

	return &Watcher{
		lib:     lib,
		fsw:     fsw,
		settle:  settle,
		logger:  lib.logger.With("component", "watcher"),
		pending: make(map[string]*time.Timer),
	}, nil
}

// Run handles filesystem events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		w.mu.Lock()
		for name, t := range w.pending {
			if t.Stop() {
				w.wg.Done()
			}
			delete(w.pending, name)
		}
		w.mu.Unlock()
		w.wg.Wait()
		w.fsw.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.schedule(ctx, "", w.sweep)
			}
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if filepath.Dir(event.Name) != filepath.Clean(w.lib.blobs.Root()) || !w.lib.blobs.IsAudio(name) {
		return
	}
	if len(name) > 0 && name[0] == '.' {
		return
	}

	w.logger.Debug("file event", "name", name, "op", event.Op.String())
	w.schedule(ctx, name, func(ctx context.Context) {
		w.reconcile(ctx, name)
	})
}

// schedule runs fn once key has been quiet for the settle period.
func (w *Watcher) schedule(ctx context.Context, key string, fn func(context.Context)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[key]; ok && t.Stop() {
		w.wg.Done()
	}

	w.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()

		w.mu.Lock()
		if w.pending[key] == t {
			delete(w.pending, key)
		}
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		fn(ctx)
	})
	w.pending[key] = t
}

// reconcile adopts the file if it exists and forgets its song otherwise.
func (w *Watcher) reconcile(ctx context.Context, name string) {
	exists, err := w.lib.blobs.Exists(name)
	if err != nil {
		w.logger.Warn("failed to stat changed file", "name", name, "error", err)
		return
	}

	if exists {
		if _, err := w.lib.Adopt(ctx, name); err != nil {
			w.logger.Warn("failed to adopt file", "name", name, "error", err)
		}
		return
	}

	if _, err := w.lib.Forget(ctx, name); err != nil {
		w.logger.Warn("failed to forget file", "name", name, "error", err)
	}
}

func (w *Watcher) sweep(ctx context.Context) {
	report, err := w.lib.Sweep(ctx)
	if err != nil {
		w.logger.Error("sweep after overflow failed", "error", err)
		return
	}
	w.logger.Info(fmt.Sprintf("resynced after overflow: %d adopted, %d dropped", len(report.Adopted), len(report.Dropped)))
}
