// Package watch re-runs analysis cycles when their input files change
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/daengine/daengine/pkg/logger"
)

// Watcher watches a fixed set of files and reports settled change batches.
// Events are collected per file and only delivered once no new event has
// arrived for the settling delay, so editors that write in several steps
// trigger a single callback.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   logger.Logger
	files    map[string]bool
	settling time.Duration

	mu      sync.Mutex
	pending map[string]time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a watcher over the given files. The parent directories are
// registered with fsnotify; events for other files in them are ignored.
func New(files []string, settling time.Duration, log logger.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if settling <= 0 {
		settling = 500 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		watcher:  fsw,
		logger:   log,
		files:    make(map[string]bool),
		settling: settling,
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}

	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			cancel()
			fsw.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			cancel()
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.cancel()
	return w.watcher.Close()
}

// Run delivers settled batches of changed files to the callback until the
// context is cancelled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, callback func(changed []string)) error {
	ticker := time.NewTicker(w.settling / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !w.files[abs] {
				continue
			}
			if w.logger != nil {
				w.logger.Debug("input changed", logger.WithField("file", event.Name))
			}
			w.mu.Lock()
			w.pending[abs] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if w.logger != nil {
				w.logger.Warn("watch error", logger.WithField("error", err))
			}

		case <-ticker.C:
			if batch := w.settled(); len(batch) > 0 {
				callback(batch)
			}
		}
	}
}

// settled returns and clears the files whose last event is older than the
// settling delay.
func (w *Watcher) settled() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	var batch []string
	for file, last := range w.pending {
		if now.Sub(last) >= w.settling {
			batch = append(batch, file)
			delete(w.pending, file)
		}
	}
	return batch
}
