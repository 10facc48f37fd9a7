package taxonomy

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// UnclassifiedCategory is the sentinel category for anything that cannot be placed.
	UnclassifiedCategory = "chua_phan_loai"
	// OtherGroup exists under every category.
	OtherGroup = "khac"
)

//go:embed taxonomy.yaml
var defaultCatalog []byte

// Group is a device family inside a category.
type Group struct {
	Slug     string `yaml:"slug" json:"slug"`
	Vi       string `yaml:"vi" json:"vi"`
	En       string `yaml:"en" json:"en"`
	Category string `yaml:"-" json:"category"`
}

// Category is a top-level device class.
type Category struct {
	ID     string  `yaml:"id" json:"id"`
	Slug   string  `yaml:"slug" json:"slug"`
	Vi     string  `yaml:"vi" json:"vi"`
	En     string  `yaml:"en" json:"en"`
	Groups []Group `yaml:"groups" json:"groups"`
}

type catalogFile struct {
	Categories []Category `yaml:"categories"`
}

// Catalog is the immutable set of valid (category, group) pairs. It is safe
// for concurrent use once loaded.
type Catalog struct {
	categories map[string]*Category
	groups     map[string]*Group
	ordered    []*Category
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads the catalog from path, or returns the built-in catalog when path
// is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	catalog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("taxonomy %s: %w", path, err)
	}
	return catalog, nil
}

// Parse decodes a YAML catalog. It guarantees the unclassified category and an
// "other" group under every category, whether or not the document lists them.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse taxonomy yaml: %w", err)
	}
	if len(file.Categories) == 0 {
		return nil, errors.New("taxonomy has no categories")
	}

	c := &Catalog{
		categories: make(map[string]*Category, len(file.Categories)+1),
		groups:     make(map[string]*Group),
	}
	for i := range file.Categories {
		if err := c.add(file.Categories[i]); err != nil {
			return nil, err
		}
	}
	if _, ok := c.categories[UnclassifiedCategory]; !ok {
		if err := c.add(Category{ID: "99_" + UnclassifiedCategory, Slug: UnclassifiedCategory, Vi: "Chưa phân loại", En: "Unclassified"}); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(c.ordered, func(i, j int) bool { return c.ordered[i].ID < c.ordered[j].ID })
	return c, nil
}

func (c *Catalog) add(cat Category) error {
	cat.Slug = strings.TrimSpace(cat.Slug)
	if cat.Slug == "" {
		return fmt.Errorf("category %q has no slug", cat.ID)
	}
	if _, dup := c.categories[cat.Slug]; dup {
		return fmt.Errorf("duplicate category slug %q", cat.Slug)
	}
	if cat.ID == "" {
		cat.ID = cat.Slug
	}
	hasOther := false
	groups := make([]Group, 0, len(cat.Groups)+1)
	seen := make(map[string]struct{}, len(cat.Groups))
	for _, g := range cat.Groups {
		g.Slug = strings.TrimSpace(g.Slug)
		if g.Slug == "" {
			return fmt.Errorf("category %q has a group without slug", cat.Slug)
		}
		if _, dup := seen[g.Slug]; dup {
			return fmt.Errorf("duplicate group %s/%s", cat.Slug, g.Slug)
		}
		seen[g.Slug] = struct{}{}
		g.Category = cat.Slug
		if g.Slug == OtherGroup {
			hasOther = true
		}
		groups = append(groups, g)
	}
	if !hasOther {
		groups = append(groups, Group{Slug: OtherGroup, Vi: "Khác", En: "Other", Category: cat.Slug})
	}
	cat.Groups = groups

	stored := &cat
	c.categories[cat.Slug] = stored
	c.ordered = append(c.ordered, stored)
	for i := range stored.Groups {
		c.groups[groupKey(cat.Slug, stored.Groups[i].Slug)] = &stored.Groups[i]
	}
	return nil
}

func groupKey(category, group string) string {
	return category + "/" + group
}

// Category looks up a category by slug.
func (c *Catalog) Category(slug string) (Category, bool) {
	cat, ok := c.categories[slug]
	if !ok {
		return Category{}, false
	}
	return *cat, true
}

// Group looks up a group within a category.
func (c *Catalog) Group(category, group string) (Group, bool) {
	g, ok := c.groups[groupKey(category, group)]
	if !ok {
		return Group{}, false
	}
	return *g, true
}

// HasCategory reports whether slug is a known category.
func (c *Catalog) HasCategory(slug string) bool {
	_, ok := c.categories[slug]
	return ok
}

// HasGroup reports whether (category, group) is a valid pair.
func (c *Catalog) HasGroup(category, group string) bool {
	_, ok := c.groups[groupKey(category, group)]
	return ok
}

// Categories returns every category ordered by id.
func (c *Catalog) Categories() []Category {
	out := make([]Category, 0, len(c.ordered))
	for _, cat := range c.ordered {
		out = append(out, *cat)
	}
	return out
}

// Groups returns the groups of a category, nil when the category is unknown.
func (c *Catalog) Groups(category string) []Group {
	cat, ok := c.categories[category]
	if !ok {
		return nil
	}
	return append([]Group(nil), cat.Groups...)
}

// PathLabel renders "Category > Group" using Vietnamese labels, falling back to
// slugs for unknown entries.
func (c *Catalog) PathLabel(category, group string) string {
	catLabel := category
	if cat, ok := c.categories[category]; ok && cat.Vi != "" {
		catLabel = cat.Vi
	}
	groupLabel := group
	if g, ok := c.groups[groupKey(category, group)]; ok && g.Vi != "" {
		groupLabel = g.Vi
	}
	return catLabel + " > " + groupLabel
}

// PromptHint lists valid "category/group" pairs, one per line, for the
// classification prompt.
func (c *Catalog) PromptHint() string {
	var b strings.Builder
	for _, cat := range c.ordered {
		for _, g := range cat.Groups {
			b.WriteString(cat.Slug)
			b.WriteByte('/')
			b.WriteString(g.Slug)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
