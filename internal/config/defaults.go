package config

const (
	defaultWatchRoot            = "~/medical-docs"
	defaultDataDir              = "~/.local/share/meddoc"
	defaultLogDir               = "~/.local/share/meddoc/logs"
	defaultWikiDirName          = "wiki"
	defaultAPIBind              = "127.0.0.1:7490"
	defaultClassifierBaseURL    = "http://localhost:20128/v1"
	defaultClassifierModel      = "if/glm-4.7"
	defaultClassifierTitle      = "meddoc"
	defaultClassifierTimeout    = 30
	defaultClassifierMaxRetries = 5
	defaultClassifierRetryBase  = 2
	defaultClassifierRetryMax   = 60
	defaultClassifierRateLimit  = 6
	defaultClassifierExcerpt    = 3000
	defaultDebounceSeconds      = 3
	defaultDrainIntervalMS      = 1000
	defaultQueueCapacity        = 256
	defaultMinSizeBytes         = 1
	defaultDedupCacheSize       = 512
	defaultDedupCacheTTLSeconds = 3600
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

func defaultExtensions() []string {
	return []string{
		".pdf", ".docx", ".doc", ".xlsx", ".xls", ".pptx", ".ppt",
		".jpg", ".jpeg", ".png", ".zip", ".rar", ".7z",
	}
}

func defaultIgnoredDirs() []string {
	return []string{".cache", ".db", "__pycache__", ".git", "wiki"}
}

func defaultIgnorePatterns() []string {
	return []string{"*.tmp", "*.part", "*.crdownload", "~$*"}
}

func defaultSubfolderRules() map[string]string {
	return map[string]string{
		"tai_lieu_ky_thuat": "ky_thuat",
		"ky_thuat":          "ky_thuat",
		"cau_hinh":          "cau_hinh",
		"bao_gia":           "bao_gia",
		"trung_thau":        "trung_thau",
		"hop_dong":          "hop_dong",
		"so_sanh":           "so_sanh",
		"thong_tin":         "thong_tin",
		"lien_ket":          "lien_ket",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchRoot: defaultWatchRoot,
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Classifier: Classifier{
			BaseURL:          defaultClassifierBaseURL,
			Model:            defaultClassifierModel,
			Title:            defaultClassifierTitle,
			TimeoutSeconds:   defaultClassifierTimeout,
			MaxRetries:       defaultClassifierMaxRetries,
			RetryBaseSeconds: defaultClassifierRetryBase,
			RetryMaxSeconds:  defaultClassifierRetryMax,
			RateLimitSeconds: defaultClassifierRateLimit,
			ExcerptChars:     defaultClassifierExcerpt,
		},
		Watcher: Watcher{
			DebounceSeconds: defaultDebounceSeconds,
			DrainIntervalMS: defaultDrainIntervalMS,
			QueueCapacity:   defaultQueueCapacity,
			MinSizeBytes:    defaultMinSizeBytes,
			Extensions:      defaultExtensions(),
			IgnorePatterns:  defaultIgnorePatterns(),
			IgnoredDirs:     defaultIgnoredDirs(),
			ScanOnStart:     true,
		},
		Workflow: Workflow{
			DedupCacheSize:       defaultDedupCacheSize,
			DedupCacheTTLSeconds: defaultDedupCacheTTLSeconds,
			SubfolderRules:       defaultSubfolderRules(),
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Drafts:         true,
			Confirmations:  true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
