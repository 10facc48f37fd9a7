package ingest

import "meddoc/internal/taxonomy"

// ApprovalPolicy decides whether a fresh draft is confirmed without waiting
// for the operator.
type ApprovalPolicy interface {
	AutoConfirm(draft DraftCreated) bool
}

// AlwaysConfirm leaves every draft for the operator.
type AlwaysConfirm struct{}

func (AlwaysConfirm) AutoConfirm(DraftCreated) bool { return false }

// ConfidenceThreshold confirms drafts whose confidence reaches Min. Drafts
// placed in the unclassified category are never auto-confirmed.
type ConfidenceThreshold struct {
	Min float64
}

func (p ConfidenceThreshold) AutoConfirm(d DraftCreated) bool {
	if p.Min <= 0 || p.Min > 1 {
		return false
	}
	if d.Category == taxonomy.UnclassifiedCategory {
		return false
	}
	return d.Confidence >= p.Min
}

// PolicyFor returns ConfidenceThreshold when threshold is positive and
// AlwaysConfirm otherwise.
func PolicyFor(threshold float64) ApprovalPolicy {
	if threshold > 0 {
		return ConfidenceThreshold{Min: threshold}
	}
	return AlwaysConfirm{}
}
