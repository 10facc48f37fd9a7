package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"meddoc/internal/classifier"
	"meddoc/internal/config"
	"meddoc/internal/daemonctl"
	"meddoc/internal/index"
	"meddoc/internal/ingest"
	"meddoc/internal/logging"
	"meddoc/internal/search"
	"meddoc/internal/taxonomy"
	"meddoc/internal/wiki"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.configValue())
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) client() *daemonctl.Client {
	return daemonctl.NewClient(c.configValue())
}

func (c *commandContext) catalog() (*taxonomy.Catalog, error) {
	cfg := c.configValue()
	if cfg == nil || cfg.Paths.TaxonomyFile == "" {
		return taxonomy.Default()
	}
	return taxonomy.Load(cfg.Paths.TaxonomyFile)
}

func (c *commandContext) withStore(fn func(*index.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := index.Open(cfg)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// withRecordActions runs fn against the daemon when its API answers, and
// against an in-process pipeline when no daemon holds the instance lock.
func (c *commandContext) withRecordActions(ctx context.Context, fn func(recordActions) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	client := c.client()
	if client != nil {
		if _, err := client.Status(ctx); err == nil {
			return fn(client)
		}
	}
	locked, err := daemonctl.DaemonLocked(cfg)
	if err != nil {
		return err
	}
	if locked {
		return errors.New("daemon is running but its API is unreachable; check paths.api_bind and paths.api_token")
	}

	pipeline, cleanup, err := c.localPipeline()
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(pipeline)
}

type recordActions interface {
	Approve(ctx context.Context, id int64) (*index.Record, error)
	Edit(ctx context.Context, id int64, field, value string) (*index.Record, error)
}

type localActions struct {
	pipeline *ingest.Pipeline
}

func (l localActions) Approve(ctx context.Context, id int64) (*index.Record, error) {
	return l.pipeline.Confirm(ctx, id)
}

func (l localActions) Edit(ctx context.Context, id int64, field, value string) (*index.Record, error) {
	return l.pipeline.Edit(ctx, id, field, value)
}

func (c *commandContext) localPipeline() (localActions, func(), error) {
	cfg := c.configValue()
	logger := c.log()
	catalog, err := c.catalog()
	if err != nil {
		return localActions{}, nil, fmt.Errorf("load taxonomy: %w", err)
	}
	store, err := index.Open(cfg)
	if err != nil {
		return localActions{}, nil, fmt.Errorf("open index: %w", err)
	}
	idx, err := search.Open(cfg.SearchIndexPath())
	if err != nil {
		_ = store.Close()
		return localActions{}, nil, fmt.Errorf("open search index: %w", err)
	}
	client := classifier.NewClient(classifier.FromConfig(cfg.GetClassifier()), classifier.WithLogger(logger))
	pipeline, err := ingest.New(cfg.Paths.WatchRoot, client, store, taxonomy.NewValidator(catalog),
		ingest.WithRegenerator(wiki.New(cfg.Paths.WikiDir, catalog, wiki.WithLogger(logger))),
		ingest.WithSearchIndex(idx),
		ingest.WithLogger(logger),
	)
	if err != nil {
		_ = idx.Close()
		_ = store.Close()
		return localActions{}, nil, err
	}
	cleanup := func() {
		pipeline.Wait()
		_ = idx.Close()
		_ = store.Close()
	}
	return localActions{pipeline: pipeline}, cleanup, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
