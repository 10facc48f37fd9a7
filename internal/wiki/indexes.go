package wiki

import (
	"fmt"
	"path/filepath"
	"strings"
)

// WriteIndexes rewrites the category and group index pages from the catalog.
func (g *Generator) WriteIndexes() error {
	if g.catalog == nil {
		return nil
	}
	stamp := g.now().UTC().Format(timeLayout)
	categories := g.catalog.Categories()

	var b strings.Builder
	b.WriteString("# Danh mục thiết bị y tế\n\n")
	fmt.Fprintf(&b, "_Cập nhật: %s_\n\n", stamp)
	b.WriteString("| ID | Tên tiếng Việt | Tên tiếng Anh | Số nhóm |\n|---|---|---|---|\n")
	for _, cat := range categories {
		fmt.Fprintf(&b, "| `%s` | %s | %s | %d |\n", cat.ID, cat.Vi, cat.En, len(cat.Groups))
	}
	b.WriteString("\n## Chi tiết từng danh mục\n\n")
	for _, cat := range categories {
		fmt.Fprintf(&b, "### %s (`%s`)\n\n", cat.Vi, cat.Slug)
		for _, grp := range cat.Groups {
			fmt.Fprintf(&b, "- **%s** (`%s`) — %s\n", grp.Vi, grp.Slug, grp.En)
		}
		b.WriteString("\n")
	}
	if err := writeAtomic(filepath.Join(g.dir, IndexCategoriesFile), []byte(b.String())); err != nil {
		return err
	}

	b.Reset()
	b.WriteString("# Danh sách nhóm thiết bị y tế\n\n")
	fmt.Fprintf(&b, "_Cập nhật: %s_\n\n", stamp)
	b.WriteString("| Nhóm | Tên tiếng Việt | Danh mục |\n|---|---|---|\n")
	for _, cat := range categories {
		for _, grp := range cat.Groups {
			fmt.Fprintf(&b, "| `%s` | %s | %s |\n", grp.Slug, grp.Vi, cat.Vi)
		}
	}
	return writeAtomic(filepath.Join(g.dir, IndexGroupsFile), []byte(b.String()))
}
