package testsupport

import (
	"testing"

	"meddoc/internal/config"
	"meddoc/internal/index"
)

// MustOpenStore opens an index.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...index.Option) *index.Store {
	t.Helper()
	store, err := index.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
