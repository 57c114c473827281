package term

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Copenhagen is the reference zone for every parsed date and default "now".
var Copenhagen = loadCopenhagen()

func loadCopenhagen() *time.Location {
	loc, err := time.LoadLocation("Europe/Copenhagen")
	if err != nil {
		return time.FixedZone("CET", 3600)
	}
	return loc
}

// DateSpan is one date occurrence in the scanned text. Start and End are
// byte offsets into the whitespace-normalized text, half open. ExplicitYear
// is false when the year was inferred from the reference time.
type DateSpan struct {
	Start, End   int
	Date         time.Time
	ExplicitYear bool
}

var monthNames = buildMonthTable()

func buildMonthTable() map[string]time.Month {
	da := []string{"januar", "februar", "marts", "april", "maj", "juni",
		"juli", "august", "september", "oktober", "november", "december"}
	en := []string{"january", "february", "march", "april", "may", "june",
		"july", "august", "september", "october", "november", "december"}
	t := make(map[string]time.Month, 48)
	for i, m := range da {
		t[m] = time.Month(i + 1)
		t[m[:3]] = time.Month(i + 1)
	}
	for i, m := range en {
		t[m] = time.Month(i + 1)
		t[m[:3]] = time.Month(i + 1)
	}
	return t
}

// monthNum resolves a month token, falling back to its first three letters
// so abbreviations like "okt" and "oct" work.
func monthNum(name string) (time.Month, bool) {
	name = strings.ToLower(name)
	if m, ok := monthNames[name]; ok {
		return m, true
	}
	if len(name) >= 3 {
		if m, ok := monthNames[name[:3]]; ok {
			return m, true
		}
	}
	return 0, false
}

var (
	// numericDateRe covers both ISO (2025-09-02) and ambiguous day-first or
	// month-first forms (15.09.25, 09/15/25). A four-digit first field is
	// year-month-day; otherwise day-month-year is tried before month-day-year.
	numericDateRe = regexp.MustCompile(`\b(\d{1,4})[./-](\d{1,2})[./-](\d{2,4})\b`)
	dayMonthRe    = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\.?\s+([a-zæøå]+)(?:\s+(\d{2,4}))?\b`)
	monthDayRe    = regexp.MustCompile(`(?i)\b([a-zæøå]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:[,.\s]+(\d{2,4}))?\b`)
	monthYearRe   = regexp.MustCompile(`(?i)\b([a-zæøå]+)\.?\s+(\d{2,4})\b`)
)

// ExtractDates returns every date occurrence in text, ordered by position.
// Offsets refer to the whitespace-normalized text. Tokens without a year
// default to the year of now; a zero now means the current time in
// Copenhagen.
func ExtractDates(text string, now time.Time) []DateSpan {
	if now.IsZero() {
		now = time.Now().In(Copenhagen)
	}
	return extractDateSpans(normalize(text), now.Year())
}

func extractDateSpans(text string, year int) []DateSpan {
	var spans []DateSpan

	for _, m := range numericDateRe.FindAllStringSubmatchIndex(text, -1) {
		f1 := atoi(text[m[2]:m[3]])
		f2 := atoi(text[m[4]:m[5]])
		f3 := atoi(text[m[6]:m[7]])
		var dt time.Time
		var ok bool
		if m[3]-m[2] == 4 {
			dt, ok = makeDate(f1, f2, f3)
		} else {
			dt, ok = makeDate(toYear(f3), f2, f1)
			if !ok {
				dt, ok = makeDate(toYear(f3), f1, f2)
			}
		}
		if ok {
			spans = append(spans, DateSpan{Start: m[0], End: m[1], Date: dt, ExplicitYear: true})
		}
	}

	for _, m := range dayMonthRe.FindAllStringSubmatchIndex(text, -1) {
		mon, ok := monthNum(text[m[4]:m[5]])
		if !ok {
			continue
		}
		y, explicit := year, false
		if m[6] >= 0 {
			y, explicit = toYear(atoi(text[m[6]:m[7]])), true
		}
		if dt, ok := makeDate(y, int(mon), atoi(text[m[2]:m[3]])); ok {
			spans = append(spans, DateSpan{Start: m[0], End: m[1], Date: dt, ExplicitYear: explicit})
		}
	}

	for _, m := range monthDayRe.FindAllStringSubmatchIndex(text, -1) {
		mon, ok := monthNum(text[m[2]:m[3]])
		if !ok {
			continue
		}
		y, explicit := year, false
		if m[6] >= 0 {
			y, explicit = toYear(atoi(text[m[6]:m[7]])), true
		}
		if dt, ok := makeDate(y, int(mon), atoi(text[m[4]:m[5]])); ok {
			spans = append(spans, DateSpan{Start: m[0], End: m[1], Date: dt, ExplicitYear: explicit})
		}
	}

	// Month-plus-year with no day at all, e.g. "oktober 2025". Day 28
	// stands in so that range math errs toward late in the month. Matches
	// nested inside a day-bearing span are skipped.
	for _, m := range monthYearRe.FindAllStringSubmatchIndex(text, -1) {
		if overlapsAny(spans, m[0], m[1]) {
			continue
		}
		mon, ok := monthNum(text[m[2]:m[3]])
		if !ok {
			continue
		}
		if dt, ok := makeDate(toYear(atoi(text[m[4]:m[5]])), int(mon), 28); ok {
			spans = append(spans, DateSpan{Start: m[0], End: m[1], Date: dt, ExplicitYear: true})
		}
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})
	return spans
}

// makeDate validates and builds a calendar date. Impossible combinations
// like April 31 report false instead of rolling over.
func makeDate(y, mo, d int) (time.Time, bool) {
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	dt := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, Copenhagen)
	if dt.Year() != y || dt.Month() != time.Month(mo) || dt.Day() != d {
		return time.Time{}, false
	}
	return dt, true
}

func toYear(y int) int {
	if y < 100 {
		return y + 2000
	}
	return y
}

func overlapsAny(spans []DateSpan, start, end int) bool {
	for _, s := range spans {
		if start < s.End && s.Start < end {
			return true
		}
	}
	return false
}

// distinctDates collapses the span list to unique calendar dates in
// chronological order.
func distinctDates(spans []DateSpan) []time.Time {
	seen := make(map[time.Time]bool, len(spans))
	var out []time.Time
	for _, s := range spans {
		if !seen[s.Date] {
			seen[s.Date] = true
			out = append(out, s.Date)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
