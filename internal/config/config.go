package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	WatchRoot    string `toml:"watch_root"`
	DataDir      string `toml:"data_dir"`
	LogDir       string `toml:"log_dir"`
	WikiDir      string `toml:"wiki_dir"`
	TaxonomyFile string `toml:"taxonomy_file"`
	APIBind      string `toml:"api_bind"`
	APIToken     string `toml:"api_token"`
}

// Classifier contains the chat-completions endpoint used to classify documents.
type Classifier struct {
	APIKey           string `toml:"api_key"`
	BaseURL          string `toml:"base_url"`
	Model            string `toml:"model"`
	Referer          string `toml:"referer"`
	Title            string `toml:"title"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	MaxRetries       int    `toml:"max_retries"`
	RetryBaseSeconds int    `toml:"retry_base_seconds"`
	RetryMaxSeconds  int    `toml:"retry_max_seconds"`
	RateLimitSeconds int    `toml:"rate_limit_seconds"`
	ExcerptChars     int    `toml:"excerpt_chars"`
}

// Watcher contains filesystem event intake settings.
type Watcher struct {
	DebounceSeconds int      `toml:"debounce_seconds"`
	DrainIntervalMS int      `toml:"drain_interval_ms"`
	QueueCapacity   int      `toml:"queue_capacity"`
	MinSizeBytes    int64    `toml:"min_size_bytes"`
	Extensions      []string `toml:"extensions"`
	IgnorePatterns  []string `toml:"ignore_patterns"`
	IgnoredDirs     []string `toml:"ignored_dirs"`
	ScanOnStart     bool     `toml:"scan_on_start"`
}

// Workflow contains draft/confirm policy settings.
type Workflow struct {
	// AutoApproveThreshold confirms drafts whose confidence reaches the value.
	// Zero disables automatic approval.
	AutoApproveThreshold float64 `toml:"auto_approve_threshold"`
	DedupCacheSize       int     `toml:"dedup_cache_size"`
	DedupCacheTTLSeconds int     `toml:"dedup_cache_ttl_seconds"`
	// SubfolderRules maps a device subfolder name to a doc type for files an
	// operator placed by hand.
	SubfolderRules map[string]string `toml:"subfolder_rules"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Drafts         bool   `toml:"drafts"`
	Confirmations  bool   `toml:"confirmations"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for meddoc.
//
// Configuration sections by subsystem:
//   - Paths: watched root, data/log/wiki directories, API bind address
//   - Classifier: AI endpoint, retry and rate limit settings
//   - Watcher: debounce window, queue capacity, eligibility filter
//   - Workflow: approval policy, dedup cache, manual placement rules
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Classifier    Classifier    `toml:"classifier"`
	Watcher       Watcher       `toml:"watcher"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/meddoc/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("meddoc.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WatchRoot, c.Paths.DataDir, c.Paths.LogDir, c.Paths.WikiDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// IndexPath returns the SQLite database location.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Paths.DataDir, "index.db")
}

// SearchIndexPath returns the full-text index directory.
func (c *Config) SearchIndexPath() string {
	return filepath.Join(c.Paths.DataDir, "search.bleve")
}

// DebounceWindow returns the quiet period a path must reach before it is processed.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.Watcher.DebounceSeconds) * time.Second
}

// DrainInterval returns how often settled events are moved to the work queue.
func (c *Config) DrainInterval() time.Duration {
	return time.Duration(c.Watcher.DrainIntervalMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ClassifierConfig contains the resolved classification endpoint settings.
type ClassifierConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Referer      string
	Title        string
	Timeout      time.Duration
	MaxRetries   int
	RetryBase    time.Duration
	RetryMax     time.Duration
	RateLimit    time.Duration
	ExcerptChars int
}

// GetClassifier returns the classification endpoint settings with durations resolved.
func (c *Config) GetClassifier() ClassifierConfig {
	return ClassifierConfig{
		APIKey:       strings.TrimSpace(c.Classifier.APIKey),
		BaseURL:      strings.TrimSpace(c.Classifier.BaseURL),
		Model:        strings.TrimSpace(c.Classifier.Model),
		Referer:      strings.TrimSpace(c.Classifier.Referer),
		Title:        strings.TrimSpace(c.Classifier.Title),
		Timeout:      time.Duration(c.Classifier.TimeoutSeconds) * time.Second,
		MaxRetries:   c.Classifier.MaxRetries,
		RetryBase:    time.Duration(c.Classifier.RetryBaseSeconds) * time.Second,
		RetryMax:     time.Duration(c.Classifier.RetryMaxSeconds) * time.Second,
		RateLimit:    time.Duration(c.Classifier.RateLimitSeconds) * time.Second,
		ExcerptChars: c.Classifier.ExcerptChars,
	}
}
