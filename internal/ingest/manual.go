package ingest

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"meddoc/internal/classifier"
	"meddoc/internal/slug"
	"meddoc/internal/taxonomy"
)

// manualPlacement recognizes files an operator dropped straight into the
// layout at root/<category>/<group>/<device>/<subfolder>/<file>, where the
// subfolder maps to a doc type through the configured rules. Such files are
// drafted without asking the classifier.
type manualPlacement struct {
	root      string
	rules     map[string]string
	validator *taxonomy.Validator
}

type manualMatch struct {
	result     classifier.Result
	placement  taxonomy.Placement
	deviceSlug string
}

func newManualPlacement(root string, rules map[string]string, validator *taxonomy.Validator) *manualPlacement {
	normalized := make(map[string]string, len(rules))
	for dir, docType := range rules {
		key := slug.Normalize(dir)
		value := slug.Normalize(docType)
		if key == "" || !taxonomy.ValidDocType(value) {
			continue
		}
		normalized[key] = value
	}
	return &manualPlacement{
		root:      root,
		rules:     normalized,
		validator: validator,
	}
}

// Detect returns the hand placement of path, if any.
func (m *manualPlacement) Detect(path string) (manualMatch, bool) {
	if m == nil || len(m.rules) == 0 || m.validator == nil {
		return manualMatch{}, false
	}
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return manualMatch{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 5 || parts[0] == ".." {
		return manualMatch{}, false
	}
	category, group, device, subfolder := parts[0], parts[1], parts[2], parts[3]

	docType, ok := m.rules[slug.Normalize(subfolder)]
	if !ok || !slug.Valid(device) {
		return manualMatch{}, false
	}
	placement := m.validator.Resolve(category, group)
	if placement.Corrected || placement.Category != category || placement.Group != group {
		return manualMatch{}, false
	}

	vendor, model := slug.SplitDeviceSlug(device)
	if model == "" {
		model = classifier.UnknownValue
	} else {
		model = strings.ToUpper(strings.ReplaceAll(model, "_", " "))
	}
	return manualMatch{
		result: classifier.Result{
			DocType:      docType,
			Vendor:       cases.Title(language.Und).String(vendor),
			Model:        model,
			CategorySlug: placement.Key(),
			Confidence:   1.0,
		},
		placement:  placement,
		deviceSlug: device,
	}, true
}
