package inbox

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var portalURLRe = regexp.MustCompile(`https://www\.boligportal\.dk[^\s"']+`)

// ExtractListingLinks pulls listing URLs out of a digest email body.
//
// The digest layout is a table whose tbody holds three rows: a "your
// search" header, the listing items, and a "see all results" footer. Only
// anchors in the second row are listings. Tracking wrappers are unwrapped,
// non-portal links dropped, and the rest normalized to scheme://host/path
// with order-preserving dedupe.
func ExtractListingLinks(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse digest html: %w", err)
	}

	items := findItemsRow(doc)
	if items == nil {
		return nil, nil
	}

	var links []string
	seen := make(map[string]bool)
	items.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = decodeRedirect(href)
		if !strings.Contains(href, "boligportal.dk") {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		base := u.Scheme + "://" + u.Host + u.Path
		if !seen[base] {
			seen[base] = true
			links = append(links, base)
		}
	})
	return links, nil
}

// findItemsRow locates the second direct row of the digest tbody. The main
// tbody is the first one with at least three direct rows, falling back to
// the first tbody in the document.
func findItemsRow(doc *goquery.Document) *goquery.Selection {
	tbodies := doc.Find("tbody")
	if tbodies.Length() == 0 {
		return nil
	}

	target := tbodies.First()
	tbodies.EachWithBreak(func(_ int, tb *goquery.Selection) bool {
		if tb.ChildrenFiltered("tr").Length() >= 3 {
			target = tb
			return false
		}
		return true
	})

	rows := target.ChildrenFiltered("tr")
	if rows.Length() < 2 {
		return nil
	}
	return rows.Eq(1)
}

// decodeRedirect unwraps the tracking layers the portal mails arrive with:
// Gmail's https://www.google.com/url?q=<real> and awstrack's
// .../L0/<percent-encoded-url> style.
func decodeRedirect(href string) string {
	if strings.HasPrefix(href, "https://www.google.com/url?") {
		if u, err := url.Parse(href); err == nil {
			if q := u.Query().Get("q"); q != "" {
				href = q
			}
		}
	}

	if _, after, ok := strings.Cut(href, "/L0/"); ok {
		decoded, err := url.PathUnescape(after)
		if err != nil {
			decoded = after
		}
		// The decoded tail often carries tracking ids after the real URL;
		// keep only the portal URL itself.
		if m := portalURLRe.FindString(decoded); m != "" {
			href = m
		}
	}
	return href
}
