// Package term decides whether a rental listing text advertises a
// short-term lease. The classifier is a pure heuristic: it extracts date
// tokens and duration phrases from mixed Danish/English text and runs them
// through a fixed-order decision cascade. Calls are deterministic for a
// given text, threshold and reference time, and perform no I/O.
package term

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Confidence ranks how directly the evidence supports the verdict.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "med"
	ConfidenceHigh   Confidence = "high"
)

// Result is the classifier output. EndDate is set only when the verdict
// came from a date range or an explicit end date.
type Result struct {
	IsShortTerm bool       `json:"is_short_term"`
	Reason      string     `json:"reason"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Confidence  Confidence `json:"confidence"`
}

const (
	// DefaultThresholdMonths applies when SHORT_TERM_MONTHS is unset.
	DefaultThresholdMonths = 6

	bindingWindow = 48 // bytes searched around a duration match for binding terms
	maxRangeGap   = 24 // bytes of filler allowed between two dates forming a range
)

// DefaultThreshold returns the month cutoff from the SHORT_TERM_MONTHS
// environment variable, falling back to DefaultThresholdMonths when the
// variable is unset or unusable.
func DefaultThreshold() float64 {
	if v := os.Getenv("SHORT_TERM_MONTHS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return DefaultThresholdMonths
}

// MonthsBetween measures the signed month distance from a to b, counting
// partial months as days over thirty.
func MonthsBetween(a, b time.Time) float64 {
	return float64((b.Year()-a.Year())*12+int(b.Month())-int(a.Month())) +
		float64(b.Day()-a.Day())/30.0
}

// Classify runs the decision cascade over text. A threshold of zero or less
// falls back to DefaultThreshold; a zero now falls back to the current time
// in Copenhagen. Identical inputs always produce identical results.
func Classify(text string, thresholdMonths float64, now time.Time) Result {
	if thresholdMonths <= 0 {
		thresholdMonths = DefaultThreshold()
	}
	if now.IsZero() {
		now = time.Now().In(Copenhagen)
	}

	t := normalize(text)
	tl := strings.ToLower(t) // byte offsets stay aligned: Danish letters keep their width

	// Short-term wording alone is weak evidence. Record it now, return it
	// only if nothing stronger decides first.
	cue := shortTermRe.FindString(tl)

	dur, durFound := firstDuration(tl)
	if durFound {
		left := tl[max(0, dur.Start-bindingWindow):dur.Start]
		right := tl[dur.End:min(len(tl), dur.End+bindingWindow)]
		switch {
		case bindingRe.MatchString(left) || bindingRe.MatchString(right):
			return Result{
				IsShortTerm: false,
				Reason:      fmt.Sprintf("Binding period ~%.1f months indicates a minimum term, not an end date", dur.Months),
				Confidence:  ConfidenceHigh,
			}
		case dur.Months <= thresholdMonths:
			return Result{
				IsShortTerm: true,
				Reason:      fmt.Sprintf("Explicit duration ~%.1f months ≤ %g", dur.Months, thresholdMonths),
				Confidence:  ConfidenceHigh,
			}
		}
		// Duration exceeds the threshold. A long stated minimum does not
		// preclude a separately stated short end date, so keep going.
	}

	spans := extractDateSpans(t, now.Year())

	for i := 0; i+1 < len(spans); i++ {
		a, b := spans[i], spans[i+1]
		var between string
		if b.Start > a.End {
			between = t[a.End:b.Start]
		}
		if altRe.MatchString(between) {
			continue // "1. juli eller 1. august" offers alternatives, not a range
		}
		connected := connectorRe.MatchString(between)
		gapOnly := len(between) <= maxRangeGap && gapRe.MatchString(between)
		hinted := rangeHintRe.MatchString(tl[max(0, a.Start-bindingWindow):a.Start])
		if !connected && !(gapOnly && hinted) {
			continue
		}
		d1, d2 := a.Date, b.Date
		if a.ExplicitYear && !b.ExplicitYear {
			d2 = time.Date(d1.Year(), d2.Month(), d2.Day(), 0, 0, 0, 0, Copenhagen)
		} else if b.ExplicitYear && !a.ExplicitYear {
			d1 = time.Date(d2.Year(), d1.Month(), d1.Day(), 0, 0, 0, 0, Copenhagen)
		}
		start, end := d1, d2
		if end.Before(start) {
			start, end = end, start
		}
		if m := MonthsBetween(start, end); m <= thresholdMonths {
			return Result{
				IsShortTerm: true,
				Reason: fmt.Sprintf("Date range %s → %s (~%.1f months ≤ %g)",
					start.Format("2006-01-02"), end.Format("2006-01-02"), m, thresholdMonths),
				EndDate:    &end,
				Confidence: ConfidenceHigh,
			}
		}
		break // only the first qualifying pair is considered
	}

	dates := distinctDates(spans)

	if endCueRe.MatchString(tl) && len(dates) > 0 {
		end := dates[len(dates)-1]
		m := MonthsBetween(now, end)
		if m <= thresholdMonths {
			return Result{
				IsShortTerm: true,
				Reason: fmt.Sprintf("End date %s is ~%.1f months from now ≤ %g",
					end.Format("2006-01-02"), m, thresholdMonths),
				EndDate:    &end,
				Confidence: ConfidenceMedium,
			}
		}
		return Result{
			IsShortTerm: false,
			Reason: fmt.Sprintf("End date %s is ~%.1f months from now > %g",
				end.Format("2006-01-02"), m, thresholdMonths),
			EndDate:    &end,
			Confidence: ConfidenceMedium,
		}
	}

	// An availability date alone says when a lease begins, not when it ends.
	if startCueRe.MatchString(tl) && len(dates) > 0 && !durFound {
		return Result{
			IsShortTerm: false,
			Reason: fmt.Sprintf("Availability date %s without a stated duration or end date",
				dates[0].Format("2006-01-02")),
			Confidence: ConfidenceMedium,
		}
	}

	if cue != "" && !bindingRe.MatchString(tl) {
		return Result{
			IsShortTerm: true,
			Reason:      fmt.Sprintf("Short-term wording (%q) with no binding terms, cutoff %g months", cue, thresholdMonths),
			Confidence:  ConfidenceLow,
		}
	}

	return Result{
		IsShortTerm: false,
		Reason:      "No clear duration or rental period (range/end) detected; any 'binding' is a minimum term",
		Confidence:  ConfidenceLow,
	}
}

// normalize collapses all whitespace runs to single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
