package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeClassifier()
	c.normalizeWatcher()
	c.normalizeWorkflow()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WatchRoot) == "" {
		c.Paths.WatchRoot = defaultWatchRoot
	}
	if c.Paths.WatchRoot, err = expandPath(c.Paths.WatchRoot); err != nil {
		return fmt.Errorf("paths.watch_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WikiDir) == "" {
		c.Paths.WikiDir = filepath.Join(c.Paths.WatchRoot, defaultWikiDirName)
	}
	if c.Paths.WikiDir, err = expandPath(c.Paths.WikiDir); err != nil {
		return fmt.Errorf("paths.wiki_dir: %w", err)
	}
	if c.Paths.TaxonomyFile, err = expandPath(strings.TrimSpace(c.Paths.TaxonomyFile)); err != nil {
		return fmt.Errorf("paths.taxonomy_file: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("MEDDOC_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeClassifier() {
	c.Classifier.APIKey = strings.TrimSpace(c.Classifier.APIKey)
	if c.Classifier.APIKey == "" {
		if value, ok := os.LookupEnv("MEDDOC_API_KEY"); ok {
			c.Classifier.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.Classifier.APIKey = strings.TrimSpace(value)
		}
	}
	c.Classifier.BaseURL = strings.TrimRight(strings.TrimSpace(c.Classifier.BaseURL), "/")
	if c.Classifier.BaseURL == "" {
		c.Classifier.BaseURL = defaultClassifierBaseURL
	}
	c.Classifier.Model = strings.TrimSpace(c.Classifier.Model)
	if c.Classifier.Model == "" {
		c.Classifier.Model = defaultClassifierModel
	}
	c.Classifier.Title = strings.TrimSpace(c.Classifier.Title)
	if c.Classifier.Title == "" {
		c.Classifier.Title = defaultClassifierTitle
	}
	c.Classifier.Referer = strings.TrimSpace(c.Classifier.Referer)
	if c.Classifier.ExcerptChars <= 0 {
		c.Classifier.ExcerptChars = defaultClassifierExcerpt
	}
}

func (c *Config) normalizeWatcher() {
	c.Watcher.Extensions = normalizeList(c.Watcher.Extensions, func(v string) string {
		v = strings.ToLower(v)
		if !strings.HasPrefix(v, ".") {
			v = "." + v
		}
		return v
	})
	if len(c.Watcher.Extensions) == 0 {
		c.Watcher.Extensions = defaultExtensions()
	}
	c.Watcher.IgnoredDirs = normalizeList(c.Watcher.IgnoredDirs, nil)
	c.Watcher.IgnorePatterns = normalizeList(c.Watcher.IgnorePatterns, nil)
	if c.Watcher.MinSizeBytes < 0 {
		c.Watcher.MinSizeBytes = 0
	}
}

func (c *Config) normalizeWorkflow() {
	if len(c.Workflow.SubfolderRules) == 0 {
		return
	}
	rules := make(map[string]string, len(c.Workflow.SubfolderRules))
	for folder, docType := range c.Workflow.SubfolderRules {
		folder = strings.ToLower(strings.TrimSpace(folder))
		docType = strings.ToLower(strings.TrimSpace(docType))
		if folder == "" || docType == "" {
			continue
		}
		rules[folder] = docType
	}
	c.Workflow.SubfolderRules = rules
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("MEDDOC_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// normalizeList trims, optionally transforms, and de-duplicates values while
// preserving their order.
func normalizeList(values []string, transform func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if transform != nil {
			value = transform(value)
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
