// Package watcher turns raw filesystem notifications under the watch root
// into a bounded stream of settled, eligible paths.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"meddoc/internal/logging"
	"meddoc/internal/pathfilter"
)

// Options configures a Watcher.
type Options struct {
	Window        time.Duration
	DrainInterval time.Duration
	QueueCapacity int
}

// Watcher owns the fsnotify source, the debouncer, and the bounded output
// channel. A full channel blocks draining until the consumer catches up.
type Watcher struct {
	filter    *pathfilter.Filter
	debouncer *Debouncer
	interval  time.Duration
	out       chan Event
	logger    *slog.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

// New constructs a Watcher. Start must be called before events flow.
func New(filter *pathfilter.Filter, opts Options, logger *slog.Logger, debounceOpts ...DebouncerOption) *Watcher {
	if opts.DrainInterval <= 0 {
		opts.DrainInterval = time.Second
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 1
	}
	return &Watcher{
		filter:    filter,
		debouncer: NewDebouncer(opts.Window, debounceOpts...),
		interval:  opts.DrainInterval,
		out:       make(chan Event, opts.QueueCapacity),
		logger:    logging.NewComponentLogger(logger, "watcher"),
	}
}

// Events returns the settled event stream. It is closed by Stop.
func (w *Watcher) Events() <-chan Event {
	return w.out
}

// Debouncer exposes the pending-path state.
func (w *Watcher) Debouncer() *Debouncer {
	return w.debouncer
}

// QueueDepth returns the number of settled events waiting for the consumer.
func (w *Watcher) QueueDepth() int {
	return len(w.out)
}

// Start registers the watch root recursively and launches the read and drain
// loops.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw != nil || w.stopped {
		return errors.New("watcher already started")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w.fsw = fsw
	if err := w.addRecursive(w.filter.Root()); err != nil {
		_ = fsw.Close()
		w.fsw = nil
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(2)
	go w.readLoop(runCtx)
	go w.drainLoop(runCtx)

	w.logger.Info("watching directory tree",
		logging.String("root", w.filter.Root()),
		logging.Int("queue_capacity", cap(w.out)),
		logging.String(logging.FieldEventType, "watcher_started"),
	)
	return nil
}

// Stop ends the read loop, stops draining, and closes the event channel.
// Pending but unsettled paths are discarded.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	cancel := w.cancel
	fsw := w.fsw
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if fsw != nil {
		_ = fsw.Close()
	}
	w.wg.Wait()
	close(w.out)
}

// Scan walks the watch root once and records every eligible file as created.
// It picks up documents dropped while the daemon was not running.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	count := 0
	err := filepath.WalkDir(w.filter.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == w.filter.Root() {
				return err
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if w.filter.SkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if ok, _ := w.filter.CheckName(path); ok {
			w.debouncer.Record(path, KindCreated)
			count++
		}
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("scan %s: %w", w.filter.Root(), err)
	}
	return count, nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.filter.SkipDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			logging.WarnWithContext(w.logger, "subdirectory not watched", "watch_add_failed",
				logging.Path(path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_watches or check permissions"),
				logging.String(logging.FieldImpact, "new files in this directory are only found by a rescan"),
			)
		}
		return nil
	})
}

func (w *Watcher) readLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(w.logger, "filesystem notification error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "some changes may have been missed"),
			)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.debouncer.Forget(path)
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.filter.SkipDir(path) {
				return
			}
			if err := w.addRecursive(path); err != nil {
				w.logger.Debug("watch new directory failed", logging.Path(path), logging.Error(err))
			}
			// A directory moved into the tree carries files that produced no events.
			_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if d.IsDir() {
					if w.filter.SkipDir(p) {
						return filepath.SkipDir
					}
					return nil
				}
				if ok, _ := w.filter.CheckName(p); ok {
					w.debouncer.Record(p, KindCreated)
				}
				return nil
			})
			return
		}
	}

	var kind Kind
	switch {
	case ev.Has(fsnotify.Create):
		kind = KindCreated
	case ev.Has(fsnotify.Write):
		kind = KindModified
	default:
		return
	}
	if ok, reason := w.filter.CheckName(path); !ok {
		w.logger.Debug("event ignored", logging.Path(path), logging.String("reason", reason))
		return
	}
	w.debouncer.Record(path, kind)
}

func (w *Watcher) drainLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.flush(ctx) {
				return
			}
		}
	}
}

// flush pushes settled events downstream. It returns false when ctx ends while
// blocked on a full queue.
func (w *Watcher) flush(ctx context.Context) bool {
	for _, ev := range w.debouncer.Drain() {
		if ok, reason := w.filter.Check(ev.Path); !ok {
			w.logger.Debug("settled path rejected",
				logging.Path(ev.Path),
				logging.String("reason", reason),
			)
			continue
		}
		select {
		case w.out <- ev:
		case <-ctx.Done():
			return false
		}
	}
	return true
}
