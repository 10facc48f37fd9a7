package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	if err := c.validateWatcher(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WatchRoot) == "" {
		return errors.New("paths.watch_root must be set")
	}
	if !filepath.IsAbs(c.Paths.WatchRoot) {
		return errors.New("paths.watch_root must be an absolute path")
	}
	if c.Paths.WatchRoot == string(filepath.Separator) {
		return errors.New("paths.watch_root must not be the filesystem root")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateClassifier() error {
	parsed, err := url.Parse(c.Classifier.BaseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("classifier.base_url must be an http(s) URL, got %q", c.Classifier.BaseURL)
	}
	if err := ensurePositiveMap(map[string]int{
		"classifier.timeout_seconds":    c.Classifier.TimeoutSeconds,
		"classifier.max_retries":        c.Classifier.MaxRetries,
		"classifier.retry_base_seconds": c.Classifier.RetryBaseSeconds,
		"classifier.retry_max_seconds":  c.Classifier.RetryMaxSeconds,
	}); err != nil {
		return err
	}
	if c.Classifier.RateLimitSeconds < 0 {
		return errors.New("classifier.rate_limit_seconds must be >= 0")
	}
	if c.Classifier.RetryMaxSeconds < c.Classifier.RetryBaseSeconds {
		return errors.New("classifier.retry_max_seconds must be >= classifier.retry_base_seconds")
	}
	return nil
}

func (c *Config) validateWatcher() error {
	if err := ensurePositiveMap(map[string]int{
		"watcher.debounce_seconds":  c.Watcher.DebounceSeconds,
		"watcher.drain_interval_ms": c.Watcher.DrainIntervalMS,
		"watcher.queue_capacity":    c.Watcher.QueueCapacity,
	}); err != nil {
		return err
	}
	for _, pattern := range c.Watcher.IgnorePatterns {
		trimmed := strings.TrimPrefix(strings.TrimSuffix(pattern, "/**"), "**/")
		if _, err := filepath.Match(trimmed, ""); err != nil {
			return fmt.Errorf("watcher.ignore_patterns: invalid pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.AutoApproveThreshold < 0 || c.Workflow.AutoApproveThreshold > 1 {
		return errors.New("workflow.auto_approve_threshold must be between 0 and 1")
	}
	if err := ensurePositiveMap(map[string]int{
		"workflow.dedup_cache_size":        c.Workflow.DedupCacheSize,
		"workflow.dedup_cache_ttl_seconds": c.Workflow.DedupCacheTTLSeconds,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
