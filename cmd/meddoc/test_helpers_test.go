package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"meddoc/internal/config"
	"meddoc/internal/index"
	"meddoc/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

// setupCLITestEnv writes a config whose API address refuses connections, so
// record actions run against an in-process pipeline.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = "127.0.0.1:1"
	t.Setenv("HOME", filepath.Join(testsupport.BaseDir(cfg), "home"))

	configPath := filepath.Join(testsupport.BaseDir(cfg), "meddoc.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func (e *cliTestEnv) seedDraft(t *testing.T, name string) (int64, string) {
	t.Helper()
	source := filepath.Join(e.cfg.Paths.WatchRoot, name)
	testsupport.WriteFile(t, source, "scan of "+name)

	store, err := index.Open(e.cfg)
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	defer store.Close()
	id, err := store.UpsertDraft(context.Background(), index.Draft{
		Path:         source,
		ContentHash:  "hash-" + name,
		DocType:      "ky_thuat",
		Vendor:       "GE Healthcare",
		Model:        "Optima XR220",
		CategorySlug: "chan_doan_hinh_anh",
		GroupSlug:    "x_quang",
		DeviceSlug:   "ge_healthcare_optima_xr220",
		Summary:      "Thông số kỹ thuật",
		Confidence:   0.9,
	})
	if err != nil {
		t.Fatalf("UpsertDraft: %v", err)
	}
	return id, source
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
