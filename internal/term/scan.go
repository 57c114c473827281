package term

import (
	"regexp"
	"strconv"
	"strings"
)

// DurationHit is an explicit lease duration phrase. Weeks are converted to
// months by dividing by four. Start and End are byte offsets of the match.
type DurationHit struct {
	Months     float64
	Start, End int
}

// A leading range like "6-12 months" counts as its lower bound.
var durationPatterns = []struct {
	re    *regexp.Regexp
	weeks bool
}{
	{regexp.MustCompile(`(?i)\b(\d{1,2})(?:\s*[-–—]\s*\d{1,2})?\s*[-\s]?(?:months?|mos?|mths?)\b`), false},
	{regexp.MustCompile(`(?i)\b(\d{1,2})(?:\s*[-–—]\s*\d{1,2})?\s*(?:mdr\.?|måneders?)\b`), false},
	{regexp.MustCompile(`(?i)\b(\d{1,2})(?:\s*[-–—]\s*\d{1,2})?\s*(?:weeks?|uger)\b`), true},
}

// FindDuration returns the leftmost explicit duration phrase in text.
func FindDuration(text string) (DurationHit, bool) {
	return firstDuration(strings.ToLower(normalize(text)))
}

func firstDuration(tl string) (DurationHit, bool) {
	best := DurationHit{Start: -1}
	for _, p := range durationPatterns {
		m := p.re.FindStringSubmatchIndex(tl)
		if m == nil {
			continue
		}
		if best.Start >= 0 && m[0] >= best.Start {
			continue
		}
		n, _ := strconv.ParseFloat(tl[m[2]:m[3]], 64)
		if p.weeks {
			n /= 4
		}
		best = DurationHit{Months: n, Start: m[0], End: m[1]}
	}
	return best, best.Start >= 0
}

// Cue vocabularies. Each category is a presence test over the lowercased
// text; matching is case-insensitive anyway so mixed-case input is fine.
var (
	shortTermRe = regexp.MustCompile(`(?i)\b(temporary|sublet|short[-\s]?term|midlertidigt?|korttids\w*|fremleje\w*|lejlighedshotel)\b`)
	bindingRe   = regexp.MustCompile(`(?i)\b(bindingsperiode|binding|ubrydelig\s+lejeperiode|min(?:\.|imum)?\s+binding)\b`)
	rangeHintRe = regexp.MustCompile(`(?i)\b(i\s+perioden|perioden|tidsrum\w*|fra|from)\b`)
	connectorRe = regexp.MustCompile(`(?i)\b(to|til|indtil|until|through|thru)\b|[-–—]`)
	altRe       = regexp.MustCompile(`(?i)\b(eller|or)\b`)
	endCueRe    = regexp.MustCompile(`(?i)\b(indtil|until|ending|ends|udløber|slutter|senest)\b`)
	startCueRe  = regexp.MustCompile(`(?i)\b(ledigt?\s+fra|available\s+from|fra|from)\b`)

	// gapRe accepts the filler allowed between two dates that form a range
	// without an explicit connector word.
	gapRe = regexp.MustCompile(`^[\s,.;:()/\-–—]*$`)
)
