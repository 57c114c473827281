package term

import "testing"

func TestFindDuration(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		months float64
		found  bool
	}{
		{"range keeps lower bound", "We rent this apartment out for 6-12 months.", 6, true},
		{"danish possessive months", "Der er 12 måneders binding", 12, true},
		{"abbreviated danish", "udlejes i 3 mdr.", 3, true},
		{"weeks divide by four", "fremlejes i 8 uger", 2, true},
		{"leftmost across units", "2 uger eller 3 måneder", 0.5, true},
		{"years are not a unit", "lease for 2 years", 0, false},
		{"rent per month is not a duration", "Rent is 9,300/month, utilities included", 0, false},
		{"no numbers", "hyggelig lejlighed i Valby", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, ok := FindDuration(tt.text)
			if ok != tt.found {
				t.Fatalf("found = %v, want %v", ok, tt.found)
			}
			if ok && hit.Months != tt.months {
				t.Errorf("months = %g, want %g", hit.Months, tt.months)
			}
			if ok && hit.Start >= hit.End {
				t.Errorf("bad match offsets [%d,%d)", hit.Start, hit.End)
			}
		})
	}
}

func TestDefaultThreshold(t *testing.T) {
	t.Setenv("SHORT_TERM_MONTHS", "9")
	if got := DefaultThreshold(); got != 9 {
		t.Errorf("threshold = %g, want 9", got)
	}

	t.Setenv("SHORT_TERM_MONTHS", "not-a-number")
	if got := DefaultThreshold(); got != DefaultThresholdMonths {
		t.Errorf("threshold = %g, want default %d", got, DefaultThresholdMonths)
	}
}
