// Package slug turns free text such as vendor and model names into ASCII
// identifiers used for directory names and device keys.
//
// Slugs match ^[a-z0-9]+(_[a-z0-9]+)*$. Vietnamese diacritics are folded to
// their base letters ("Siêu âm" becomes "sieu_am") and đ/Đ become d.
package slug

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	validPattern   = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)
	invalidRunsPat = regexp.MustCompile(`[^a-z0-9]+`)
)

// ErrEmptyPart marks a slug that could not be built because a required part
// normalized to nothing.
var ErrEmptyPart = errors.New("slug part is empty")

// SlugError reports which part of a device slug was unusable.
type SlugError struct {
	Part  string
	Input string
}

func (e *SlugError) Error() string {
	return fmt.Sprintf("build device slug: %s %q normalizes to empty", e.Part, e.Input)
}

func (e *SlugError) Unwrap() error { return ErrEmptyPart }

func foldTransformer() transform.Transformer {
	return transform.Chain(
		runes.Map(func(r rune) rune {
			if r == 'đ' || r == 'Đ' {
				return 'd'
			}
			return r
		}),
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
}

// Normalize folds text into slug form. The result is empty when text holds no
// ASCII letters or digits after folding.
func Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	folded, _, err := transform.String(foldTransformer(), text)
	if err != nil {
		folded = text
	}
	folded = strings.ToLower(folded)
	folded = invalidRunsPat.ReplaceAllString(folded, "_")
	return strings.Trim(folded, "_")
}

// Valid reports whether s already satisfies the slug grammar.
func Valid(s string) bool {
	return validPattern.MatchString(s)
}

// BuildDeviceSlug joins the normalized vendor, model, and optional variant
// into one slug. Vendor and model are required; empty variants are skipped.
func BuildDeviceSlug(vendor, model string, variant ...string) (string, error) {
	v := Normalize(vendor)
	if v == "" {
		return "", &SlugError{Part: "vendor", Input: vendor}
	}
	m := Normalize(model)
	if m == "" {
		return "", &SlugError{Part: "model", Input: model}
	}
	parts := []string{v, m}
	for _, extra := range variant {
		if n := Normalize(extra); n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "_"), nil
}

// SplitDeviceSlug is a best-effort inverse used for hand-placed folders: the
// first segment becomes the vendor, the remainder the model.
func SplitDeviceSlug(s string) (vendor, model string) {
	head, tail, found := strings.Cut(s, "_")
	if !found {
		return s, ""
	}
	return head, tail
}

// UnknownPart replaces a vendor or model that normalizes to nothing.
const UnknownPart = "Unknown"

// DeviceSlugOrUnknown is BuildDeviceSlug with empty parts replaced by
// UnknownPart, so it always returns a valid slug.
func DeviceSlugOrUnknown(vendor, model string) string {
	if Normalize(vendor) == "" {
		vendor = UnknownPart
	}
	if Normalize(model) == "" {
		model = UnknownPart
	}
	s, err := BuildDeviceSlug(vendor, model)
	if err != nil {
		return "unknown_unknown"
	}
	return s
}
