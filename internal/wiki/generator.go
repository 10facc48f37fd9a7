package wiki

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"
	"time"

	"meddoc/internal/index"
	"meddoc/internal/logging"
	"meddoc/internal/taxonomy"
)

//go:embed model_page.md.tmpl
var modelPageTemplate string

var pageTemplate = template.Must(template.New("model_page").Option("missingkey=error").Parse(modelPageTemplate))

const (
	// IndexCategoriesFile lists every category with its groups.
	IndexCategoriesFile = "index_categories.md"
	// IndexGroupsFile lists every group flat.
	IndexGroupsFile = "index_groups.md"
	emptySection    = "_Chưa có tài liệu._"
	timeLayout      = "2006-01-02 15:04 UTC"
)

// DeviceInfo describes the device a page belongs to.
type DeviceInfo struct {
	Vendor     string
	Model      string
	Category   string
	Group      string
	DeviceSlug string
}

// Generator writes wiki pages under one directory.
type Generator struct {
	dir     string
	catalog *taxonomy.Catalog
	now     func() time.Time
	logger  *slog.Logger
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New returns a generator writing into dir.
func New(dir string, catalog *taxonomy.Catalog, opts ...Option) *Generator {
	g := &Generator{
		dir:     dir,
		catalog: catalog,
		now:     time.Now,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dir returns the output directory.
func (g *Generator) Dir() string {
	return g.dir
}

// PagePath returns the page location for deviceSlug.
func (g *Generator) PagePath(deviceSlug string) string {
	return filepath.Join(g.dir, "model_"+deviceSlug+".md")
}

// Regenerate brings the device page in line with records, the full set of
// confirmed records of the device, and refreshes the taxonomy indexes.
func (g *Generator) Regenerate(ctx context.Context, deviceSlug string, info DeviceInfo, records []index.Record) error {
	if strings.TrimSpace(deviceSlug) == "" {
		return fmt.Errorf("regenerate wiki: device slug required")
	}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return fmt.Errorf("create wiki dir: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	info.DeviceSlug = deviceSlug

	path := g.PagePath(deviceSlug)
	content, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		content, err = g.renderPage(info)
		if err != nil {
			return err
		}
		g.logger.Info("wiki page created", logging.Device(deviceSlug), logging.Path(path))
	case err != nil:
		return fmt.Errorf("read wiki page: %w", err)
	}

	byType := make(map[string][]index.Record)
	for _, rec := range records {
		if !rec.Confirmed {
			continue
		}
		byType[rec.DocType] = append(byType[rec.DocType], rec)
	}
	var extra []string
	for docType := range byType {
		if !taxonomy.ValidDocType(docType) {
			extra = append(extra, docType)
		}
	}
	sort.Strings(extra)
	docTypes := append(taxonomy.DocTypes(), extra...)

	updated := string(content)
	for _, docType := range docTypes {
		files := byType[docType]
		if len(files) == 0 && !hasSection(updated, docType) {
			continue
		}
		updated = replaceSection(updated, docType, g.sectionBody(docType, files))
	}
	if updated != string(content) {
		if err := writeAtomic(path, []byte(updated)); err != nil {
			return err
		}
		g.logger.Info("wiki page updated",
			logging.Device(deviceSlug),
			logging.Int("documents", len(records)),
		)
	}
	return g.WriteIndexes()
}

type pageSection struct {
	DocType string
	Label   string
}

func (g *Generator) renderPage(info DeviceInfo) ([]byte, error) {
	sections := make([]pageSection, 0, len(taxonomy.DocTypes()))
	for _, docType := range taxonomy.DocTypes() {
		sections = append(sections, pageSection{DocType: docType, Label: taxonomy.DocTypeLabel(docType)})
	}
	data := map[string]any{
		"Vendor":        info.Vendor,
		"Model":         info.Model,
		"Category":      info.Category,
		"Group":         info.Group,
		"CategoryLabel": info.Category,
		"GroupLabel":    info.Group,
		"DeviceSlug":    info.DeviceSlug,
		"GeneratedAt":   g.now().UTC().Format(timeLayout),
		"Sections":      sections,
	}
	if g.catalog != nil {
		if cat, ok := g.catalog.Category(info.Category); ok {
			data["CategoryLabel"] = cat.Vi
		}
		if grp, ok := g.catalog.Group(info.Category, info.Group); ok {
			data["GroupLabel"] = grp.Vi
		}
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render wiki page: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) sectionBody(docType string, files []index.Record) string {
	if len(files) == 0 {
		return emptySection
	}
	sorted := append([]index.Record(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	lines := make([]string, 0, len(sorted))
	for _, rec := range sorted {
		rel, err := filepath.Rel(g.dir, rec.Path)
		if err != nil {
			rel = rec.Path
		}
		date := ""
		if !rec.UpdatedAt.IsZero() {
			date = rec.UpdatedAt.UTC().Format("2006-01-02")
		}
		lines = append(lines, fmt.Sprintf("- [%s](%s) — %d KB — %s",
			filepath.Base(rec.Path), filepath.ToSlash(rel), rec.SizeBytes/1024, date))
	}
	return strings.Join(lines, "\n")
}

func sectionPattern(docType string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(docType)
	return regexp.MustCompile(`(?s)<!-- DOC_SECTION:` + quoted + ` -->.*?<!-- /DOC_SECTION:` + quoted + ` -->`)
}

func hasSection(content, docType string) bool {
	return sectionPattern(docType).MatchString(content)
}

// replaceSection swaps the marked block for docType, appending one when the
// page has none.
func replaceSection(content, docType, body string) string {
	block := "<!-- DOC_SECTION:" + docType + " -->\n" + body + "\n<!-- /DOC_SECTION:" + docType + " -->"
	re := sectionPattern(docType)
	if re.MatchString(content) {
		return re.ReplaceAllLiteralString(content, block)
	}
	return strings.TrimRight(content, "\n") + "\n\n## " + taxonomy.DocTypeLabel(docType) + "\n\n" + block + "\n"
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".wiki-*")
	if err != nil {
		return fmt.Errorf("create temp wiki file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write wiki file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close wiki file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod wiki file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace wiki file: %w", err)
	}
	return nil
}
