package term

import (
	"testing"
	"time"
)

func cph(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, Copenhagen)
}

func TestExtractDates(t *testing.T) {
	now := cph(2025, time.August, 30)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "two digit year day first",
			text: "15.09.25",
			want: []string{"2025-09-15"},
		},
		{
			name: "month first fallback when day is impossible",
			text: "09/15/25",
			want: []string{"2025-09-15"},
		},
		{
			name: "iso format",
			text: "2025-09-02",
			want: []string{"2025-09-02"},
		},
		{
			name: "month and year assume day 28",
			text: "oktober 2025",
			want: []string{"2025-10-28"},
		},
		{
			name: "abbreviated month",
			text: "okt 2025",
			want: []string{"2025-10-28"},
		},
		{
			name: "invalid calendar date dropped",
			text: "31.04.2025",
			want: nil,
		},
		{
			name: "ordinal day without year",
			text: "ledig fra 1. juli",
			want: []string{"2025-07-01"},
		},
		{
			name: "month before day",
			text: "January 5, 2026",
			want: []string{"2026-01-05"},
		},
		{
			name: "nested month year not double counted",
			text: "15 oktober 2025",
			want: []string{"2025-10-15"},
		},
		{
			name: "positional order kept",
			text: "26/6/2026 og 18/9/2025",
			want: []string{"2026-06-26", "2025-09-18"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := ExtractDates(tt.text, now)
			if len(spans) != len(tt.want) {
				t.Fatalf("got %d spans, want %d: %v", len(spans), len(tt.want), spans)
			}
			for i, s := range spans {
				if got := s.Date.Format("2006-01-02"); got != tt.want[i] {
					t.Errorf("span %d = %s, want %s", i, got, tt.want[i])
				}
				if s.Start >= s.End {
					t.Errorf("span %d has bad offsets [%d,%d)", i, s.Start, s.End)
				}
			}
		})
	}
}

func TestExtractDatesExplicitYear(t *testing.T) {
	now := cph(2025, time.August, 30)

	spans := ExtractDates("fra 1. juli til 1. august 2026", now)
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2: %v", len(spans), spans)
	}
	if spans[0].ExplicitYear {
		t.Error("first span should have an inferred year")
	}
	if spans[0].Date.Year() != 2025 {
		t.Errorf("inferred year = %d, want 2025", spans[0].Date.Year())
	}
	if !spans[1].ExplicitYear {
		t.Error("second span should have an explicit year")
	}
}

func TestMonthsBetween(t *testing.T) {
	got := MonthsBetween(cph(2025, time.September, 18), cph(2026, time.June, 26))
	want := 9.0 + 8.0/30.0
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("MonthsBetween = %f, want %f", got, want)
	}
}
