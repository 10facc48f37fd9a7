package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	// CLILogName is the shared log appended to by CLI invocations.
	CLILogName = "meddoc-cli.log"
	// CurrentLogName is the symlink pointing at the active daemon run log.
	CurrentLogName = "meddoc.log"
)

// RunLogName returns the file name of the daemon log for one run.
func RunLogName(runID string) string {
	return fmt.Sprintf("meddoc-%s.log", runID)
}

// PruneRunLogs removes daemon run logs in dir whose modification time is
// older than retentionDays. The active run log and the CLI log are kept.
// It returns the number of files removed; retentionDays <= 0 disables pruning.
func PruneRunLogs(logger *slog.Logger, dir string, retentionDays int, active string) int {
	if retentionDays <= 0 || dir == "" {
		return 0
	}
	matches, err := filepath.Glob(filepath.Join(dir, "meddoc-*.log"))
	if err != nil {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	activeAbs, _ := filepath.Abs(active)

	removed := 0
	for _, path := range matches {
		if filepath.Base(path) == CLILogName {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil && abs == activeAbs {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				Path(path),
				Error(err),
				String(FieldErrorHint, "check permissions on paths.log_dir"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		removed++
	}
	if removed > 0 && logger != nil {
		logger.Info("old run logs pruned",
			Int("removed", removed),
			Int("retention_days", retentionDays),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}
