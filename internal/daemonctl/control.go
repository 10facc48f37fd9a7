package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"meddoc/internal/config"
	"meddoc/internal/daemon"
	"meddoc/internal/index"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

// Launch starts a detached meddoc daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon", "run"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits until the daemon API answers a status request.
func WaitForClient(ctx context.Context, client *Client, timeout time.Duration) (*daemon.Status, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := client.Status(ctx)
		if err == nil {
			return status, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// ErrDaemonNotRunning indicates no daemon process owns the pid file.
var ErrDaemonNotRunning = errors.New("daemon not running")

// ReadPID returns the pid recorded in pidPath when that process is alive.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrDaemonNotRunning
		}
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid daemon pid file %q", pidPath)
	}
	if !processAlive(pid) {
		return 0, ErrDaemonNotRunning
	}
	return pid, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// StopAndTerminate sends SIGTERM to the daemon and SIGKILL if it is still
// alive after gracePeriod.
func StopAndTerminate(pidPath string, gracePeriod time.Duration) (StopResult, error) {
	pid, err := ReadPID(pidPath)
	if err != nil {
		return StopResult{}, err
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return StopResult{}, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	deadline := time.Now().Add(gracePeriod)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return StopResult{PID: pid}, nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	if err := proc.Kill(); err != nil {
		return StopResult{PID: pid}, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return StopResult{PID: pid, ForcedKill: true}, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	return StopResult{PID: pid, ForcedKill: true}, nil
}

// StatusSnapshot describes the daemon as seen from the CLI.
type StatusSnapshot struct {
	Reachable bool
	Status    daemon.Status
	// Offline is set when record counts were read from the index directly.
	Offline bool
}

// BuildStatusSnapshot asks the running daemon for its status and falls back
// to reading record counts from the index when the API is unreachable.
func BuildStatusSnapshot(ctx context.Context, client *Client, cfg *config.Config) (StatusSnapshot, error) {
	if cfg == nil {
		return StatusSnapshot{}, errors.New("configuration not available")
	}
	if client != nil {
		if status, err := client.Status(ctx); err == nil && status != nil {
			return StatusSnapshot{Reachable: true, Status: *status}, nil
		}
	}

	snapshot := StatusSnapshot{Offline: true}
	snapshot.Status.WatchRoot = cfg.Paths.WatchRoot
	snapshot.Status.IndexPath = cfg.IndexPath()

	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	store, err := index.Open(cfg)
	if err != nil {
		return snapshot, nil
	}
	defer store.Close()
	if stats, err := store.Stats(queryCtx); err == nil {
		snapshot.Status.Records = stats
	}
	return snapshot, nil
}

// DaemonLocked reports whether a daemon currently holds the instance lock.
func DaemonLocked(cfg *config.Config) (bool, error) {
	lock := flock.New(daemon.LockPath(cfg))
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("check daemon lock: %w", err)
	}
	if !ok {
		return true, nil
	}
	_ = lock.Unlock()
	return false, nil
}
