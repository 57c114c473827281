package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

var (
	// ErrNoContactButton means the listing page offered no way to contact
	// the landlord, usually because the layout changed.
	ErrNoContactButton = errors.New("contact button not found")
	// ErrAlreadyContacted means the portal redirected to the inbox, which
	// it does when a conversation for the listing already exists.
	ErrAlreadyContacted = errors.New("listing already contacted")
	// ErrNoSendButton means the message dialog opened but could not be
	// submitted.
	ErrNoSendButton = errors.New("send button not found")
)

// The portal ships both Danish and English button labels depending on the
// account locale.
var (
	contactButtonTexts = []string{"Contact", "Kontakt", "Skriv til udlejer", "Go to inbox", "Gå til beskeder"}
	sendButtonTexts    = []string{"Send"}
)

// AlreadyContacted reports whether a URL points at the portal inbox, the
// redirect target for listings that were contacted before.
func AlreadyContacted(url string) bool {
	lower := strings.ToLower(url)
	return strings.Contains(lower, "indbakke") || strings.Contains(lower, "inbox")
}

// ListingText returns the description text of the current listing page,
// the input for the short-term classifier.
func (s *Session) ListingText() (string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.Timeout)
	defer cancel()

	js := `(function() {
		var parts = [];
		var sels = ['div.css-1o5zkyw', 'div.css-1f7mpex'];
		for (var i = 0; i < sels.length; i++) {
			var el = document.querySelector(sels[i]);
			if (el) {
				var text = (el.innerText || '').trim();
				if (text) parts.push(text);
			}
		}
		return parts.join(' ');
	})()`

	var text string
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &text)); err != nil {
		return "", fmt.Errorf("failed to read listing text: %w", err)
	}
	return text, nil
}

// BlockKeywordMatch checks the listing detail blocks for any of the given
// lowercased keywords and returns the first one that appears.
func (s *Session) BlockKeywordMatch(keywords []string) (string, bool, error) {
	if len(keywords) == 0 {
		return "", false, nil
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.config.Timeout)
	defer cancel()

	js := `(function() {
		var parts = [];
		var divs = document.querySelectorAll('div.css-o9y6d5');
		for (var i = 0; i < divs.length; i++) {
			parts.push(divs[i].innerText || '');
		}
		return parts.join(' ');
	})()`

	var combined string
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &combined)); err != nil {
		return "", false, fmt.Errorf("failed to read detail blocks: %w", err)
	}

	combined = strings.ToLower(combined)
	for _, kw := range keywords {
		if strings.Contains(combined, kw) {
			return kw, true, nil
		}
	}
	return "", false, nil
}

// ListingInfo is the title and address shown on a listing page, used in
// notifications.
type ListingInfo struct {
	Title   string `json:"title"`
	Address string `json:"address"`
}

// Info extracts the listing title and address. Either may come back empty
// when the layout changed; callers treat them as best effort.
func (s *Session) Info() (ListingInfo, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.Timeout)
	defer cancel()

	js := `(function() {
		var title = '';
		var el = document.querySelector('span.css-v34a4n');
		if (el) title = (el.innerText || '').trim();
		if (!title) {
			var spans = document.querySelectorAll('span');
			for (var i = 0; i < spans.length; i++) {
				var t = (spans[i].innerText || '');
				if (t.indexOf('m²') !== -1) { title = t.trim(); break; }
			}
		}
		var address = '';
		var divs = document.querySelectorAll('div.css-o9y6d5');
		for (var i = 0; i < divs.length; i++) {
			var t = (divs[i].innerText || '').trim();
			var m = t.match(/\b\d{4}\b/);
			if (m) { address = t.slice(m.index).trim(); break; }
		}
		return {title: title, address: address};
	})()`

	var info ListingInfo
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &info)); err != nil {
		return ListingInfo{}, fmt.Errorf("failed to read listing info: %w", err)
	}
	return info, nil
}

// Contact opens the message dialog on the current listing page, fills the
// prewritten message and sends it. Returns ErrAlreadyContacted when the
// contact button leads to the inbox instead of a dialog.
func (s *Session) Contact(message string) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.Timeout)
	defer cancel()

	clicked, err := clickButtonByText(ctx, contactButtonTexts)
	if err != nil {
		return fmt.Errorf("failed to click contact button: %w", err)
	}
	if !clicked {
		return ErrNoContactButton
	}

	// Allow any navigation or dialog to appear
	time.Sleep(800 * time.Millisecond)

	var url string
	if err := chromedp.Run(ctx, chromedp.Location(&url)); err == nil && AlreadyContacted(url) {
		return ErrAlreadyContacted
	}

	if err := s.fillMessage(ctx, message); err != nil {
		return err
	}

	sent, err := clickButtonByText(ctx, sendButtonTexts)
	if err != nil {
		return fmt.Errorf("failed to click send button: %w", err)
	}
	if !sent {
		return ErrNoSendButton
	}

	// Tiny wait for any toast/confirmation
	time.Sleep(1200 * time.Millisecond)
	return nil
}

// fillMessage locates the dialog textarea and types the message into it.
// The portal names its field __TextField1, with progressively looser
// fallbacks for layout changes.
func (s *Session) fillMessage(ctx context.Context, message string) error {
	js := `(function() {
		var el = document.getElementById('__TextField1');
		if (el && el.tagName.toLowerCase() === 'textarea' && el.offsetParent !== null) {
			return '#__TextField1';
		}
		el = document.querySelector("div[role='dialog'] textarea");
		if (el && el.offsetParent !== null) {
			return "div[role='dialog'] textarea";
		}
		if (document.querySelector('textarea') !== null) {
			return 'textarea';
		}
		return '';
	})()`

	var selector string
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &selector)); err != nil {
		return fmt.Errorf("failed to locate message field: %w", err)
	}
	if selector == "" {
		return fmt.Errorf("message dialog did not open")
	}

	err := chromedp.Run(ctx,
		chromedp.Click(selector, chromedp.NodeVisible),
		chromedp.Clear(selector),
		chromedp.SendKeys(selector, message),
	)
	if err != nil {
		return fmt.Errorf("failed to fill message: %w", err)
	}
	return nil
}

// clickButtonByText clicks the first visible button whose text contains any
// of the wanted labels.
func clickButtonByText(ctx context.Context, texts []string) (bool, error) {
	js := fmt.Sprintf(`(function() {
		var wanted = %s;
		var buttons = document.querySelectorAll('button');
		for (var i = 0; i < buttons.length; i++) {
			var el = buttons[i];
			if (el.offsetParent === null) continue;
			var text = (el.textContent || '').trim();
			for (var j = 0; j < wanted.length; j++) {
				if (text.indexOf(wanted[j]) !== -1) {
					el.click();
					return true;
				}
			}
		}
		return false;
	})()`, jsStringArray(texts))

	var clicked bool
	err := chromedp.Run(ctx, chromedp.Evaluate(js, &clicked))
	return clicked, err
}

// jsStringArray renders a Go string slice as a JS array literal
func jsStringArray(items []string) string {
	var b strings.Builder
	b.WriteString("[")
	for i, s := range items {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "%q", s)
	}
	b.WriteString("]")
	return b.String()
}
