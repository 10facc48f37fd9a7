package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"meddoc/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckClassifier_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	result := CheckClassifier(context.Background(), config.ClassifierConfig{BaseURL: srv.URL + "/v1", Model: "m"})
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "no API key") {
		t.Fatalf("expected missing key note, got %q", result.Detail)
	}
}

func TestCheckClassifier_BadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := CheckClassifier(context.Background(), config.ClassifierConfig{BaseURL: srv.URL, APIKey: "bad", Model: "m"})
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if result.Detail != "auth failed (invalid api key)" {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckNtfy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/meddoc/json" || r.URL.Query().Get("poll") != "1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if result := CheckNtfy(context.Background(), srv.URL+"/meddoc"); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckNtfy(context.Background(), " "); result.Passed {
		t.Fatal("expected failure for missing topic")
	}
}

func TestCheckTaxonomy(t *testing.T) {
	if result := CheckTaxonomy(""); !result.Passed || !strings.HasPrefix(result.Detail, "built-in") {
		t.Fatalf("expected built-in catalog to load, got %+v", result)
	}
	bad := filepath.Join(t.TempDir(), "taxonomy.yaml")
	if err := os.WriteFile(bad, []byte("categories: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckTaxonomy(bad); result.Passed {
		t.Fatal("expected empty catalog to fail")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MissingRootIsFatal(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WatchRoot = filepath.Join(t.TempDir(), "missing")
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.WikiDir = t.TempDir()
	cfg.Classifier.BaseURL = ""
	cfg.Notifications.NtfyTopic = ""

	results := RunAll(context.Background(), &cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	fatal, ok := FirstFatal(results)
	if !ok || fatal.Name != "Watch root" {
		t.Fatalf("expected watch root to be fatal, got %+v", fatal)
	}
}
