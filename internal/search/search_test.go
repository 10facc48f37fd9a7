package search_test

import (
	"context"
	"testing"

	"meddoc/internal/index"
	"meddoc/internal/search"
	"meddoc/internal/taxonomy"
)

func TestParseQuery(t *testing.T) {
	cases := []struct {
		raw, docType, keyword string
	}{
		{"cấu hình máy xquang ge", taxonomy.DocConfiguration, "máy xquang ge"},
		{"HDSD máy thở", taxonomy.DocManual, "máy thở"},
		{"hd siemens", taxonomy.DocContract, "siemens"},
		{"chào giá mindray bc-5000", taxonomy.DocQuotation, "mindray bc-5000"},
		{"chụp cắt lớp", "", "chụp cắt lớp"},
		{"  ", "", ""},
	}
	for _, tc := range cases {
		docType, keyword := search.ParseQuery(tc.raw)
		if docType != tc.docType || keyword != tc.keyword {
			t.Fatalf("ParseQuery(%q) = (%q, %q), want (%q, %q)", tc.raw, docType, keyword, tc.docType, tc.keyword)
		}
	}
}

func newIndex(t *testing.T) *search.Index {
	t.Helper()
	idx, err := search.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestSearchConfirmedRecords(t *testing.T) {
	idx := newIndex(t)
	records := []index.Record{
		{ID: 1, Path: "/docs/a/b/ge_healthcare_optima_xr220/CauHinh_XR220.pdf", DocType: "cau_hinh", Vendor: "GE Healthcare", Model: "Optima XR220", DeviceSlug: "ge_healthcare_optima_xr220", Summary: "Cấu hình máy X-quang", Confirmed: true},
		{ID: 2, Path: "/docs/a/b/ge_healthcare_optima_xr220/HopDong.pdf", DocType: "hop_dong", Vendor: "GE Healthcare", Model: "Optima XR220", DeviceSlug: "ge_healthcare_optima_xr220", Summary: "Hợp đồng mua bán", Confirmed: true},
		{ID: 3, Path: "/docs/inbox/draft.pdf", DocType: "cau_hinh", Vendor: "GE Healthcare", Model: "Optima XR220", Confirmed: false},
	}
	n, err := idx.Rebuild(context.Background(), records)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 confirmed documents, got %d", n)
	}

	hits, err := idx.Search(context.Background(), "cấu hình optima", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].RecordID != 1 || hits[0].DocType != "cau_hinh" {
		t.Fatalf("unexpected hits %+v", hits)
	}

	hits, err = idx.Search(context.Background(), "may x quang", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Path != records[0].Path {
		t.Fatalf("diacritic-insensitive search failed: %+v", hits)
	}

	records[1].Confirmed = false
	if err := idx.Put(records[1]); err != nil {
		t.Fatalf("Put: %v", err)
	}
	count, err := idx.Count()
	if err != nil || count != 1 {
		t.Fatalf("expected unconfirmed record removed, count=%d err=%v", count, err)
	}
}
