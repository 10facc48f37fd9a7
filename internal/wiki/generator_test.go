package wiki_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meddoc/internal/index"
	"meddoc/internal/taxonomy"
	"meddoc/internal/wiki"
)

func newGenerator(t *testing.T) (*wiki.Generator, string) {
	t.Helper()
	catalog, err := taxonomy.Default()
	if err != nil {
		t.Fatalf("taxonomy.Default: %v", err)
	}
	root := t.TempDir()
	dir := filepath.Join(root, "wiki")
	clock := func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) }
	return wiki.New(dir, catalog, wiki.WithClock(clock)), root
}

func confirmedRecord(root, name, docType string, size int64) index.Record {
	return index.Record{
		Path:       filepath.Join(root, "chan_doan_hinh_anh", "x_quang", "ge_healthcare_optima_xr220", name),
		DocType:    docType,
		DeviceSlug: "ge_healthcare_optima_xr220",
		SizeBytes:  size,
		Confirmed:  true,
		UpdatedAt:  time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestRegenerateCreatesPageWithSections(t *testing.T) {
	gen, root := newGenerator(t)
	info := wiki.DeviceInfo{Vendor: "GE Healthcare", Model: "Optima XR220", Category: "chan_doan_hinh_anh", Group: "x_quang"}
	records := []index.Record{
		confirmedRecord(root, "IncomingScan.pdf", "ky_thuat", 4096),
		{Path: filepath.Join(root, "draft.pdf"), DocType: "ky_thuat", Confirmed: false},
	}
	if err := gen.Regenerate(context.Background(), "ge_healthcare_optima_xr220", info, records); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}

	data, err := os.ReadFile(gen.PagePath("ge_healthcare_optima_xr220"))
	if err != nil {
		t.Fatalf("read page: %v", err)
	}
	page := string(data)
	want := "- [IncomingScan.pdf](../chan_doan_hinh_anh/x_quang/ge_healthcare_optima_xr220/IncomingScan.pdf) — 4 KB — 2026-05-01"
	if !strings.Contains(page, want) {
		t.Fatalf("page missing entry %q:\n%s", want, page)
	}
	if strings.Contains(page, "draft.pdf") {
		t.Fatal("drafts must not appear on wiki pages")
	}
	if strings.Count(page, "<!-- DOC_SECTION:ky_thuat -->") != 1 {
		t.Fatalf("expected exactly one ky_thuat section:\n%s", page)
	}
	if !strings.Contains(page, "# GE Healthcare Optima XR220") {
		t.Fatalf("missing heading:\n%s", page)
	}
	for _, name := range []string{wiki.IndexCategoriesFile, wiki.IndexGroupsFile} {
		if _, err := os.Stat(filepath.Join(gen.Dir(), name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestRegenerateIsIdempotentAndKeepsNotes(t *testing.T) {
	gen, root := newGenerator(t)
	info := wiki.DeviceInfo{Vendor: "GE Healthcare", Model: "Optima XR220", Category: "chan_doan_hinh_anh", Group: "x_quang"}
	ctx := context.Background()
	slug := "ge_healthcare_optima_xr220"

	records := []index.Record{confirmedRecord(root, "a.pdf", "ky_thuat", 2048)}
	if err := gen.Regenerate(ctx, slug, info, records); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	path := gen.PagePath(slug)
	data, _ := os.ReadFile(path)
	withNote := strings.Replace(string(data), "## Ghi chú\n", "## Ghi chú\n\nBảo trì 6 tháng/lần.\n", 1)
	if err := os.WriteFile(path, []byte(withNote), 0o644); err != nil {
		t.Fatalf("write note: %v", err)
	}

	records = append(records, confirmedRecord(root, "hd.pdf", "hop_dong", 1024))
	for i := 0; i < 2; i++ {
		if err := gen.Regenerate(ctx, slug, info, records); err != nil {
			t.Fatalf("Regenerate %d: %v", i, err)
		}
	}
	data, _ = os.ReadFile(path)
	page := string(data)
	if !strings.Contains(page, "Bảo trì 6 tháng/lần.") {
		t.Fatal("operator notes were overwritten")
	}
	if strings.Count(page, "[a.pdf]") != 1 || strings.Count(page, "[hd.pdf]") != 1 {
		t.Fatalf("entries duplicated:\n%s", page)
	}
	if strings.Count(page, "<!-- DOC_SECTION:hop_dong -->") != 1 {
		t.Fatalf("expected one hop_dong section:\n%s", page)
	}
}
