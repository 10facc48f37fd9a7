package taxonomy

import (
	"strings"

	"meddoc/internal/slug"
)

// Classifier output frequently names categories and groups that do not exist.
// These tables map the recurring inventions to their catalog equivalent. Keys
// are stored in normalized slug form.
var (
	categoryCorrections = normalizedTable(map[string]string{
		"ngoai_khoa":              "thiet_bi_phong_mo",
		"phau_thuat":              "thiet_bi_phong_mo",
		"phong_mo":                "thiet_bi_phong_mo",
		"trang_thiet_bi_phong_mo": "thiet_bi_phong_mo",
		"thiet-bi-phong-mo":       "thiet_bi_phong_mo",
		"thiet_bi_hoi_suc":        "hoi_suc_cap_cuu",
		"thiet_bi_hoi_suc_gay_me": "gay_me_may_tho",
		"Unknown":                 UnclassifiedCategory,
		"khac":                    UnclassifiedCategory,
	})
	groupCorrections = normalizedTable(map[string]string{
		"Unknown":                OtherGroup,
		"may_tho":                "may_tho_hoi_suc",
		"phong_mo":               OtherGroup,
		"thiet_bi_phong_mo":      OtherGroup,
		"ban-mo":                 "ban_mo",
		"monitor_benh_nhan":      "monitor",
		"may_theo_doi_benh_nhan": "monitor",
		"bon_rua_tay_phau_thuat": "bon_rua_tay",
	})
)

func normalizedTable(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[slug.Normalize(k)] = v
	}
	return out
}

// Placement is a catalog-valid (category, group) pair.
type Placement struct {
	Category  string `json:"category"`
	Group     string `json:"group"`
	Corrected bool   `json:"corrected"`
	Reason    string `json:"reason,omitempty"`
}

// Key returns "category/group".
func (p Placement) Key() string {
	return groupKey(p.Category, p.Group)
}

// Validator maps arbitrary classifier output onto the catalog.
type Validator struct {
	catalog *Catalog
}

// NewValidator binds a validator to catalog.
func NewValidator(catalog *Catalog) *Validator {
	return &Validator{catalog: catalog}
}

// Catalog exposes the underlying catalog.
func (v *Validator) Catalog() *Catalog {
	return v.catalog
}

// ResolveComposite splits "category/group" and resolves it. Input without a
// separator is treated as a bare category.
func (v *Validator) ResolveComposite(composite string) Placement {
	category, group, _ := strings.Cut(composite, "/")
	return v.Resolve(category, group)
}

// Resolve always returns a valid placement. Unknown categories fall back to
// the unclassified category, unknown groups to the category's "other" group.
func (v *Validator) Resolve(rawCategory, rawGroup string) Placement {
	category := slug.Normalize(rawCategory)
	group := slug.Normalize(rawGroup)

	var reasons []string
	if fixed, ok := categoryCorrections[category]; ok && fixed != category {
		reasons = append(reasons, "category "+category+" -> "+fixed)
		category = fixed
	}
	if fixed, ok := groupCorrections[group]; ok && fixed != group {
		reasons = append(reasons, "group "+group+" -> "+fixed)
		group = fixed
	}

	if category == "" {
		category = UnclassifiedCategory
		group = OtherGroup
		return placement(category, group, rawCategory != "" || rawGroup != "", append(reasons, "empty category"))
	}
	if !v.catalog.HasCategory(category) {
		reasons = append(reasons, "unknown category "+category)
		return placement(UnclassifiedCategory, OtherGroup, true, reasons)
	}
	if group == "" {
		return placement(category, OtherGroup, len(reasons) > 0, reasons)
	}
	if !v.catalog.HasGroup(category, group) {
		reasons = append(reasons, "unknown group "+category+"/"+group)
		return placement(category, OtherGroup, true, reasons)
	}
	return placement(category, group, len(reasons) > 0, reasons)
}

func placement(category, group string, corrected bool, reasons []string) Placement {
	p := Placement{Category: category, Group: group, Corrected: corrected}
	if corrected {
		p.Reason = strings.Join(reasons, "; ")
	}
	return p
}
