package taxonomy_test

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"meddoc/internal/taxonomy"
)

func mustDefault(t *testing.T) *taxonomy.Catalog {
	t.Helper()
	catalog, err := taxonomy.Default()
	if err != nil {
		t.Fatalf("load default catalog: %v", err)
	}
	return catalog
}

func TestDefaultCatalogLookups(t *testing.T) {
	catalog := mustDefault(t)

	cat, ok := catalog.Category("chan_doan_hinh_anh")
	if !ok || cat.Vi != "Chẩn đoán hình ảnh" || cat.ID != "chan_doan_hinh_anh" {
		t.Fatalf("unexpected category: %+v ok=%v", cat, ok)
	}
	if _, ok := catalog.Group("chan_doan_hinh_anh", "x_quang"); !ok {
		t.Fatal("expected x_quang group")
	}
	if _, ok := catalog.Group("chan_doan_hinh_anh", "nope"); ok {
		t.Fatal("unexpected group match")
	}
	if got := catalog.PathLabel("chan_doan_hinh_anh", "x_quang"); got != "Chẩn đoán hình ảnh > X-Quang" {
		t.Fatalf("unexpected path label %q", got)
	}
	cats := catalog.Categories()
	if len(cats) != 25 {
		t.Fatalf("expected 25 categories, got %d", len(cats))
	}
	for i := 1; i < len(cats); i++ {
		if cats[i-1].ID > cats[i].ID {
			t.Fatalf("categories not sorted by id: %s before %s", cats[i-1].ID, cats[i].ID)
		}
	}
	for _, c := range cats {
		if !catalog.HasGroup(c.Slug, taxonomy.OtherGroup) {
			t.Fatalf("category %s lacks the other group", c.Slug)
		}
	}
}

func TestLoadAddsSentinels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	doc := "categories:\n  - id: \"01_a\"\n    slug: a\n    vi: A\n    en: A\n    groups:\n      - {slug: b, vi: B, en: B}\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	catalog, err := taxonomy.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !catalog.HasGroup("a", "khac") {
		t.Fatal("expected implicit khac group")
	}
	if !catalog.HasGroup(taxonomy.UnclassifiedCategory, taxonomy.OtherGroup) {
		t.Fatal("expected sentinel pair")
	}
}

func TestParseRejectsDuplicates(t *testing.T) {
	doc := "categories:\n  - {id: '1', slug: a, vi: A, en: A}\n  - {id: '2', slug: a, vi: A, en: A}\n"
	if _, err := taxonomy.Parse([]byte(doc)); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestResolveCorrections(t *testing.T) {
	v := taxonomy.NewValidator(mustDefault(t))
	cases := []struct {
		in        string
		wantCat   string
		wantGroup string
		corrected bool
	}{
		{"chan_doan_hinh_anh/x_quang", "chan_doan_hinh_anh", "x_quang", false},
		{"noi_soi/ong_soi_mem", "noi_soi", "ong_soi_mem", false},
		{"phong_mo/ban-mo", "thiet_bi_phong_mo", "ban_mo", true},
		{"thiet-bi-phong-mo/bon_rua_tay_phau_thuat", "thiet_bi_phong_mo", "bon_rua_tay", false},
		{"thiet_bi_hoi_suc/may_tho", "hoi_suc_cap_cuu", "may_tho_hoi_suc", true},
		{"thiet_bi_hoi_suc/monitor_benh_nhan", "hoi_suc_cap_cuu", "monitor", true},
		{"thiet_bi_hoi_suc_gay_me/xyz", "gay_me_may_tho", "khac", true},
		{"Unknown/Unknown", "chua_phan_loai", "khac", true},
		{"khac", "chua_phan_loai", "khac", true},
		{"noi_soi", "noi_soi", "khac", false},
		{"made_up_category/x", "chua_phan_loai", "khac", true},
		{"chan_doan_hinh_anh/made_up", "chan_doan_hinh_anh", "khac", true},
		{"", "chua_phan_loai", "khac", false},
		{"Chẩn đoán hình ảnh/Siêu âm", "chan_doan_hinh_anh", "sieu_am", false},
	}
	for _, tc := range cases {
		got := v.ResolveComposite(tc.in)
		if got.Category != tc.wantCat || got.Group != tc.wantGroup {
			t.Fatalf("ResolveComposite(%q) = %s, want %s/%s", tc.in, got.Key(), tc.wantCat, tc.wantGroup)
		}
		if tc.corrected && !got.Corrected {
			t.Fatalf("ResolveComposite(%q) expected correction flag", tc.in)
		}
	}
}

func TestResolveIsTotal(t *testing.T) {
	catalog := mustDefault(t)
	v := taxonomy.NewValidator(catalog)
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abcxyz_-/ ĐđâơKHAC0123?!")
	for i := 0; i < 2000; i++ {
		n := rng.Intn(24)
		buf := make([]rune, n)
		for j := range buf {
			buf[j] = alphabet[rng.Intn(len(alphabet))]
		}
		p := v.ResolveComposite(string(buf))
		if !catalog.HasGroup(p.Category, p.Group) {
			t.Fatalf("ResolveComposite(%q) produced invalid pair %s", string(buf), p.Key())
		}
	}
}

func TestDocTypes(t *testing.T) {
	if got := taxonomy.NormalizeDocType("Hop_Dong"); got != taxonomy.DocContract {
		t.Fatalf("unexpected normalized doc type %q", got)
	}
	if got := taxonomy.NormalizeDocType("brochure"); got != taxonomy.DocOther {
		t.Fatalf("expected unknown doc type to map to other, got %q", got)
	}
	if got := taxonomy.DocTypeLabel("ky_thuat"); got != "Kỹ thuật" {
		t.Fatalf("unexpected label %q", got)
	}
}
