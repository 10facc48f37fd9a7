package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"meddoc/internal/config"
	"meddoc/internal/index"
	"meddoc/internal/ingest"
	"meddoc/internal/logging"
	"meddoc/internal/search"
	"meddoc/internal/watcher"
)

const relayBuffer = 64

// Deps are the collaborators the daemon drives.
type Deps struct {
	Store    *index.Store
	Pipeline *ingest.Pipeline
	Watcher  *watcher.Watcher
	Search   *search.Index
	Notifier ingest.Notifier
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *index.Store
	pipeline *ingest.Pipeline
	watcher  *watcher.Watcher
	search   *search.Index
	relay    *ingest.Relay
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	mu          sync.Mutex
	running     atomic.Bool
	startedAt   time.Time
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool        `json:"running"`
	PID          int         `json:"pid"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	WatchRoot    string      `json:"watch_root"`
	IndexPath    string      `json:"index_path"`
	LockFilePath string      `json:"lock_file_path"`
	QueueDepth   int         `json:"queue_depth"`
	PendingPaths int         `json:"pending_paths"`
	BusDropped   int64       `json:"bus_dropped"`
	Records      index.Stats `json:"records"`
	SearchDocs   uint64      `json:"search_docs"`
}

// LockPath returns the single-instance lock file for cfg.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "meddoc.lock")
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || deps.Store == nil || deps.Pipeline == nil || deps.Watcher == nil {
		return nil, errors.New("daemon requires config, store, pipeline, and watcher")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := LockPath(cfg)
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    deps.Store,
		pipeline: deps.Pipeline,
		watcher:  deps.Watcher,
		search:   deps.Search,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	if deps.Notifier != nil {
		d.relay = ingest.NewRelay(deps.Notifier, cfg.Paths.WatchRoot, logger)
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock, starts watching, and launches the
// pipeline consumer, the notification relay and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another meddoc daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.watcher.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start watcher: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.watcher.Stop()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel

	if d.relay != nil {
		msgs, unsubscribe := d.pipeline.Bus().Subscribe(relayBuffer)
		d.unsubscribe = unsubscribe
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.relay.Run(runCtx, msgs)
		}()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.pipeline.Run(runCtx, d.watcher.Events())
	}()

	if d.cfg.Watcher.ScanOnStart {
		count, err := d.watcher.Scan(runCtx)
		if err != nil {
			logging.WarnWithContext(d.logger, "startup scan incomplete", "startup_scan_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "files added while the daemon was down may be missed"),
			)
		}
		d.logger.Info("startup scan queued files", logging.Int("files", count))
	}

	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("meddoc daemon started",
		logging.String("lock", d.lockPath),
		logging.String("root", d.cfg.Paths.WatchRoot),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops watching, lets the in-flight item finish, and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.watcher.Stop()
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.pipeline.Wait()
	if d.unsubscribe != nil {
		d.unsubscribe()
		d.unsubscribe = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("meddoc daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.search != nil {
		errs = append(errs, d.search.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	return errors.Join(errs...)
}

// Pipeline exposes the ingest pipeline.
func (d *Daemon) Pipeline() *ingest.Pipeline {
	return d.pipeline
}

// APIAddress returns the bound API address, empty when the API is disabled.
func (d *Daemon) APIAddress() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		WatchRoot:    d.cfg.Paths.WatchRoot,
		IndexPath:    d.store.Path(),
		LockFilePath: d.lockPath,
		QueueDepth:   d.watcher.QueueDepth(),
		PendingPaths: d.watcher.Debouncer().Pending(),
		BusDropped:   d.pipeline.Bus().Dropped(),
	}
	if status.Running {
		started := d.startedAt
		status.StartedAt = &started
	}
	if stats, err := d.store.Stats(ctx); err == nil {
		status.Records = stats
	} else {
		d.logger.Warn("index stats unavailable", logging.Error(err))
	}
	if d.search != nil {
		if count, err := d.search.Count(); err == nil {
			status.SearchDocs = count
		}
	}
	return status
}
