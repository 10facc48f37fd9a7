package preflight

import (
	"context"
	"strings"

	"meddoc/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Fatal marks a check the daemon cannot run without.
	Fatal bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	root := CheckDirectoryAccess("Watch root", cfg.Paths.WatchRoot)
	root.Fatal = true
	results := []Result{
		root,
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Wiki directory", cfg.Paths.WikiDir),
		CheckTaxonomy(cfg.Paths.TaxonomyFile),
	}

	if strings.TrimSpace(cfg.Classifier.BaseURL) != "" {
		results = append(results, CheckClassifier(ctx, cfg.GetClassifier()))
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}
	return results
}

// FirstFatal returns the first failed fatal check.
func FirstFatal(results []Result) (Result, bool) {
	for _, r := range results {
		if r.Fatal && !r.Passed {
			return r, true
		}
	}
	return Result{}, false
}
