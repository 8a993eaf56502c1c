package matching

import "github.com/concilia-app/concilia-api/internal/domain"

// Thresholds are the configurable tier cutoffs. High must be strictly
// greater than Medium.
type Thresholds struct {
	High   int
	Medium int
}

// DefaultThresholds returns the stock 60/35 cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 60, Medium: 35}
}

// Classify maps a score to a confidence tier. hasCustomerSignal is true
// when a directory match or a manual mapping exists for the payer: that
// independent identity signal is actionable for a reviewer even when the
// score itself is low, so it alone is enough for partial.
func Classify(score int, hasCustomerSignal bool, t Thresholds) string {
	switch {
	case score >= t.High:
		return domain.TierAuto
	case score >= t.Medium || hasCustomerSignal:
		return domain.TierPartial
	default:
		return domain.TierNone
	}
}
