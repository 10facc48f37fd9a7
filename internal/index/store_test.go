package index_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"meddoc/internal/index"
	"meddoc/internal/services"
	"meddoc/internal/testsupport"
)

func sampleDraft(path string) index.Draft {
	return index.Draft{
		Path:         path,
		ContentHash:  "abc123",
		DocType:      "ky_thuat",
		Vendor:       "GE Healthcare",
		Model:        "Optima XR220",
		CategorySlug: "chan_doan_hinh_anh",
		GroupSlug:    "x_quang",
		DeviceSlug:   "ge_healthcare_optima_xr220",
		Summary:      "Thông số kỹ thuật",
		Confidence:   0.9,
		SizeBytes:    1024,
	}
}

func TestUpsertDraftIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	store := testsupport.MustOpenStore(t, cfg, index.WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	path := filepath.Join(cfg.Paths.WatchRoot, "IncomingScan.pdf")
	first, err := store.UpsertDraft(ctx, sampleDraft(path))
	if err != nil {
		t.Fatalf("UpsertDraft: %v", err)
	}

	clock = clock.Add(time.Hour)
	updated := sampleDraft(path)
	updated.Summary = "Cấu hình"
	updated.DocType = "cau_hinh"
	second, err := store.UpsertDraft(ctx, updated)
	if err != nil {
		t.Fatalf("second UpsertDraft: %v", err)
	}
	if first != second {
		t.Fatalf("expected same id, got %d and %d", first, second)
	}

	rec, err := store.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil || rec.DocType != "cau_hinh" || rec.Summary != "Cấu hình" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.CreatedAt.Equal(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("created_at changed: %s", rec.CreatedAt)
	}
	if !rec.UpdatedAt.Equal(clock) {
		t.Fatalf("updated_at not refreshed: %s", rec.UpdatedAt)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 1 || stats.Drafts != 1 {
		t.Fatalf("expected one draft, got %+v", stats)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	rec, err := store.GetByID(context.Background(), 42)
	if err != nil || rec != nil {
		t.Fatalf("expected nil,nil got %+v, %v", rec, err)
	}
}

func TestConfirmAndRelocate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	path := filepath.Join(cfg.Paths.WatchRoot, "IncomingScan.pdf")
	id, err := store.UpsertDraft(ctx, sampleDraft(path))
	if err != nil {
		t.Fatalf("UpsertDraft: %v", err)
	}

	devices, err := store.ListByDevice(ctx, "ge_healthcare_optima_xr220")
	if err != nil {
		t.Fatalf("ListByDevice: %v", err)
	}
	if len(devices) != 0 {
		t.Fatalf("drafts must not appear in device listings, got %d", len(devices))
	}

	target := filepath.Join(cfg.Paths.WatchRoot, "chan_doan_hinh_anh", "x_quang", "ge_healthcare_optima_xr220", "IncomingScan.pdf")
	if err := store.ConfirmAndRelocate(ctx, id, target); err != nil {
		t.Fatalf("ConfirmAndRelocate: %v", err)
	}
	rec, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !rec.Confirmed || rec.Path != target || rec.ConfirmedAt == nil {
		t.Fatalf("unexpected record after confirm %+v", rec)
	}
	if old, _ := store.Get(ctx, path); old != nil {
		t.Fatalf("old path still indexed")
	}

	if err := store.ConfirmAndRelocate(ctx, id, target); !errors.Is(err, index.ErrAlreadyConfirmed) {
		t.Fatalf("expected ErrAlreadyConfirmed, got %v", err)
	}
	if err := store.ConfirmAndRelocate(ctx, 999, target); !errors.Is(err, index.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !errors.Is(index.ErrNotFound, services.ErrNotFound) {
		t.Fatal("ErrNotFound should carry the services marker")
	}

	devices, err = store.ListByDevice(ctx, "ge_healthcare_optima_xr220")
	if err != nil {
		t.Fatalf("ListByDevice: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected confirmed record listed, got %d", len(devices))
	}
	counts, err := store.CountByDevice(ctx, "ge_healthcare_optima_xr220")
	if err != nil {
		t.Fatalf("CountByDevice: %v", err)
	}
	if counts["ky_thuat"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestConfirmRejectsPathOwnedByAnotherRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := filepath.Join(cfg.Paths.WatchRoot, "a.pdf")
	b := filepath.Join(cfg.Paths.WatchRoot, "b.pdf")
	idA, err := store.UpsertDraft(ctx, sampleDraft(a))
	if err != nil {
		t.Fatalf("UpsertDraft a: %v", err)
	}
	if _, err := store.UpsertDraft(ctx, sampleDraft(b)); err != nil {
		t.Fatalf("UpsertDraft b: %v", err)
	}
	if err := store.ConfirmAndRelocate(ctx, idA, b); !errors.Is(err, index.ErrPathConflict) {
		t.Fatalf("expected ErrPathConflict, got %v", err)
	}
	rec, _ := store.GetByID(ctx, idA)
	if rec.Confirmed || rec.Path != a {
		t.Fatalf("failed confirm must leave the draft untouched: %+v", rec)
	}
}

func TestUpdateFieldsRecomputesDeviceSlug(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	id, err := store.UpsertDraft(ctx, sampleDraft(filepath.Join(cfg.Paths.WatchRoot, "x.pdf")))
	if err != nil {
		t.Fatalf("UpsertDraft: %v", err)
	}
	rec, err := store.UpdateFields(ctx, id, map[string]string{"model": "Definium 656"})
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if rec.Model != "Definium 656" || rec.DeviceSlug != "ge_healthcare_definium_656" {
		t.Fatalf("unexpected record %+v", rec)
	}

	rec, err = store.UpdateFields(ctx, id, map[string]string{"summary": "mới"})
	if err != nil {
		t.Fatalf("UpdateFields summary: %v", err)
	}
	if rec.DeviceSlug != "ge_healthcare_definium_656" || rec.Summary != "mới" {
		t.Fatalf("summary edit changed slug: %+v", rec)
	}

	_, err = store.UpdateFields(ctx, id, map[string]string{"path": "/etc/passwd"})
	var fieldErr *index.FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "path" {
		t.Fatalf("expected FieldError for path, got %v", err)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("FieldError should be a validation failure")
	}

	if _, err := store.UpdateFields(ctx, 999, map[string]string{"vendor": "X"}); !errors.Is(err, index.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchFiltersAndOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	drafts := []index.Draft{
		sampleDraft(filepath.Join(cfg.Paths.WatchRoot, "hop_dong_2026.pdf")),
		sampleDraft(filepath.Join(cfg.Paths.WatchRoot, "bao_gia_50%.pdf")),
		sampleDraft(filepath.Join(cfg.Paths.WatchRoot, "ct_scan.pdf")),
	}
	drafts[0].DocType = "hop_dong"
	drafts[0].SizeBytes = 10
	drafts[1].DocType = "bao_gia"
	drafts[1].SizeBytes = 30
	drafts[2].SizeBytes = 20
	for _, d := range drafts {
		if _, err := store.UpsertDraft(ctx, d); err != nil {
			t.Fatalf("UpsertDraft: %v", err)
		}
	}

	got, err := store.Search(ctx, index.Query{DocType: "hop_dong"})
	if err != nil || len(got) != 1 {
		t.Fatalf("doc type filter: %v %d", err, len(got))
	}
	got, err = store.Search(ctx, index.Query{Keyword: "50%"})
	if err != nil || len(got) != 1 || got[0].DocType != "bao_gia" {
		t.Fatalf("keyword filter should treat %% literally: %v %+v", err, got)
	}
	got, err = store.Search(ctx, index.Query{OrderBy: "size_bytes desc"})
	if err != nil || len(got) != 3 || got[0].SizeBytes != 30 || got[2].SizeBytes != 10 {
		t.Fatalf("order by size: %v %+v", err, got)
	}
	confirmed := true
	got, err = store.Search(ctx, index.Query{Confirmed: &confirmed})
	if err != nil || len(got) != 0 {
		t.Fatalf("confirmed filter: %v %d", err, len(got))
	}
	if _, err := store.Search(ctx, index.Query{OrderBy: "id; DROP TABLE files"}); !errors.Is(err, index.ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder, got %v", err)
	}
}

func TestParseOrder(t *testing.T) {
	cases := map[string]string{
		"":                "updated_at DESC",
		"path":            "path ASC",
		"Confidence DESC": "confidence DESC",
		"created_at asc":  "created_at ASC",
	}
	for in, want := range cases {
		got, err := index.ParseOrder(in)
		if err != nil || got != want {
			t.Fatalf("ParseOrder(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"summary", "path sideways", "path asc extra"} {
		if _, err := index.ParseOrder(bad); !errors.Is(err, index.ErrInvalidOrder) {
			t.Fatalf("ParseOrder(%q) should fail, got %v", bad, err)
		}
	}
}

func TestEventsAndDelete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	path := filepath.Join(cfg.Paths.WatchRoot, "a.pdf")
	if _, err := store.UpsertDraft(ctx, sampleDraft(path)); err != nil {
		t.Fatalf("UpsertDraft: %v", err)
	}
	if err := store.LogEvent(ctx, index.EventDraftCreated, path, "ky_thuat"); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	if err := store.LogEvent(ctx, index.EventDeleted, path, ""); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	events, err := store.Events(ctx, 10)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 2 || events[0].Type != index.EventDeleted {
		t.Fatalf("expected newest first, got %+v", events)
	}

	found, err := store.FindByHash(ctx, "abc123")
	if err != nil || found == nil || found.Path != path {
		t.Fatalf("FindByHash: %+v %v", found, err)
	}

	removed, err := store.Delete(ctx, path)
	if err != nil || !removed {
		t.Fatalf("Delete: %v %v", removed, err)
	}
	removed, err = store.Delete(ctx, path)
	if err != nil || removed {
		t.Fatalf("second Delete should report nothing removed: %v %v", removed, err)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck || health.SchemaVersion != 1 {
		t.Fatalf("unexpected health %+v", health)
	}
}
