package classifier

import (
	"math"
	"strings"

	"meddoc/internal/taxonomy"
)

// UnknownValue stands in for a vendor or model the model could not name.
const UnknownValue = "Unknown"

// FallbackSummary is recorded when the model answer could not be read.
const FallbackSummary = "Không thể phân loại tự động"

// Result is the classification of one document.
type Result struct {
	DocType      string
	Vendor       string
	Model        string
	CategorySlug string
	Summary      string
	Confidence   float64
	// ConfidenceEstimated is set when Confidence was derived locally
	// because the model omitted it or returned an unusable value.
	ConfidenceEstimated bool
	// Fallback marks a result synthesized from an unreadable answer.
	Fallback bool
}

// Category returns the category half of CategorySlug.
func (r Result) Category() string {
	cat, _, _ := strings.Cut(r.CategorySlug, "/")
	return strings.TrimSpace(cat)
}

// Group returns the group half of CategorySlug.
func (r Result) Group() string {
	_, group, _ := strings.Cut(r.CategorySlug, "/")
	return strings.TrimSpace(group)
}

// FallbackResult is the result used when the model answer is unusable.
func FallbackResult() Result {
	r := Result{
		DocType:  taxonomy.DocOther,
		Vendor:   UnknownValue,
		Model:    UnknownValue,
		Summary:  FallbackSummary,
		Fallback: true,
	}
	r.Confidence = EstimateConfidence(r)
	r.ConfidenceEstimated = true
	return r
}

// EstimateConfidence derives a score from how complete the result is.
func EstimateConfidence(r Result) float64 {
	vendorKnown := r.Vendor != "" && r.Vendor != UnknownValue
	modelKnown := r.Model != "" && r.Model != UnknownValue
	typed := r.DocType != "" && r.DocType != taxonomy.DocOther
	switch {
	case vendorKnown && modelKnown && typed:
		return 0.8
	case typed && r.CategorySlug != "":
		return 0.75
	default:
		return 0.5
	}
}

func validConfidence(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v <= 1
}
