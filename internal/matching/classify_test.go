package matching

import (
	"testing"

	"github.com/concilia-app/concilia-api/internal/domain"
)

func TestClassify(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name      string
		score     int
		hasSignal bool
		want      string
	}{
		{"at high threshold", 60, false, domain.TierAuto},
		{"above high threshold", 95, false, domain.TierAuto},
		{"just below high", 59, false, domain.TierPartial},
		{"at medium threshold", 35, false, domain.TierPartial},
		{"low score with customer signal", 10, true, domain.TierPartial},
		{"zero with customer signal", 0, true, domain.TierPartial},
		{"low score no signal", 10, false, domain.TierNone},
		{"zero no signal", 0, false, domain.TierNone},
	}
	for _, tt := range tests {
		if got := Classify(tt.score, tt.hasSignal, th); got != tt.want {
			t.Errorf("%s: Classify(%d, %v) = %q, want %q", tt.name, tt.score, tt.hasSignal, got, tt.want)
		}
	}
}

func TestClassify_CustomThresholds(t *testing.T) {
	th := Thresholds{High: 80, Medium: 50}
	if got := Classify(79, false, th); got != domain.TierPartial {
		t.Errorf("Classify(79) with high=80 = %q, want partial", got)
	}
	if got := Classify(49, false, th); got != domain.TierNone {
		t.Errorf("Classify(49) with medium=50 = %q, want none", got)
	}
}
