package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"meddoc/internal/classifier"
	"meddoc/internal/config"
	"meddoc/internal/daemon"
	"meddoc/internal/index"
	"meddoc/internal/ingest"
	"meddoc/internal/logging"
	"meddoc/internal/notifications"
	"meddoc/internal/pathfilter"
	"meddoc/internal/preflight"
	"meddoc/internal/search"
	"meddoc/internal/taxonomy"
	"meddoc/internal/watcher"
	"meddoc/internal/wiki"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// SkipPreflight starts the daemon even when a fatal check fails.
	SkipPreflight bool
}

// PIDPath returns the pid file written by a running daemon.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "meddoc.pid")
}

// Run starts the meddoc daemon and blocks until the context is cancelled or
// the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, logging.RunLogName(runID))
	logger, err := logging.NewDaemon(cfg, opts.LogLevel, logPath, opts.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update meddoc.log link: %v\n", err)
	}
	logging.PruneRunLogs(logger, cfg.Paths.LogDir, cfg.Logging.RetentionDays, logPath)

	if err := runPreflight(signalCtx, cfg, logger, opts.SkipPreflight); err != nil {
		return err
	}

	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	store, err := index.Open(cfg)
	if err != nil {
		logger.Error("open index store", logging.Error(err))
		return err
	}

	searchIndex, err := openSearch(signalCtx, cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return err
	}

	generator := wiki.New(cfg.Paths.WikiDir, catalog, wiki.WithLogger(logger))
	if err := generator.WriteIndexes(); err != nil {
		logging.WarnWithContext(logger, "wiki index pages not written", "wiki_index_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "category index pages may be stale"),
		)
	}

	client := classifier.NewClient(classifier.FromConfig(cfg.GetClassifier()),
		classifier.WithCategories(catalog.PromptHint()),
		classifier.WithLogger(logger),
	)

	pipeline, err := ingest.New(cfg.Paths.WatchRoot, client, store, taxonomy.NewValidator(catalog),
		ingest.WithPolicy(ingest.PolicyFor(cfg.Workflow.AutoApproveThreshold)),
		ingest.WithDedupCache(ingest.NewDedupCache(cfg.Workflow.DedupCacheSize, time.Duration(cfg.Workflow.DedupCacheTTLSeconds)*time.Second)),
		ingest.WithSubfolderRules(cfg.Workflow.SubfolderRules),
		ingest.WithRegenerator(generator),
		ingest.WithSearchIndex(searchIndex),
		ingest.WithLogger(logger),
	)
	if err != nil {
		_ = searchIndex.Close()
		_ = store.Close()
		return fmt.Errorf("create pipeline: %w", err)
	}

	filter := pathfilter.New(pathfilter.OptionsFromConfig(cfg))
	fsWatcher := watcher.New(filter, watcher.Options{
		Window:        cfg.DebounceWindow(),
		DrainInterval: cfg.DrainInterval(),
		QueueCapacity: cfg.Watcher.QueueCapacity,
	}, logger)

	d, err := daemon.New(cfg, daemon.Deps{
		Store:    store,
		Pipeline: pipeline,
		Watcher:  fsWatcher,
		Search:   searchIndex,
		Notifier: notifications.NewService(cfg),
	}, logger)
	if err != nil {
		_ = searchIndex.Close()
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that no other meddoc daemon is running and the watch root is readable"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("meddoc daemon shutting down")
	return nil
}

func runPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger, skip bool) error {
	results := preflight.RunAll(ctx, cfg)
	for _, r := range results {
		if r.Passed {
			logger.Debug("preflight check passed", logging.String("check", r.Name), logging.String("detail", r.Detail))
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.Bool("fatal", r.Fatal),
		)
	}
	if fatal, ok := preflight.FirstFatal(results); ok && !skip {
		return fmt.Errorf("preflight %s: %s", fatal.Name, fatal.Detail)
	}
	return nil
}

func loadCatalog(cfg *config.Config) (*taxonomy.Catalog, error) {
	if cfg.Paths.TaxonomyFile == "" {
		return taxonomy.Default()
	}
	catalog, err := taxonomy.Load(cfg.Paths.TaxonomyFile)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}
	return catalog, nil
}

// openSearch opens the full-text index and rebuilds it from the confirmed
// records, which remain the source of truth.
func openSearch(ctx context.Context, cfg *config.Config, store *index.Store, logger *slog.Logger) (*search.Index, error) {
	idx, err := search.Open(cfg.SearchIndexPath())
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	records, err := store.ListConfirmed(ctx)
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("list confirmed records: %w", err)
	}
	count, err := idx.Rebuild(ctx, records)
	if err != nil {
		logging.WarnWithContext(logger, "search index rebuild incomplete", "search_rebuild_failed",
			logging.Error(err),
			logging.Int("indexed", count),
			logging.String(logging.FieldImpact, "some confirmed records missing from full-text search"),
		)
		return idx, nil
	}
	logger.Info("search index rebuilt", logging.Int("documents", count))
	return idx, nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.CurrentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
