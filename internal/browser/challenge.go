package browser

import (
	"context"
	"strings"

	"github.com/chromedp/chromedp"
)

// Challenge describes a bot check standing between the session and the
// listing. The portal occasionally fronts pages with Cloudflare or a
// CAPTCHA widget; contacting through those needs a human.
type Challenge struct {
	Found       bool
	Kind        string
	Description string
}

const (
	ChallengeRecaptcha  = "recaptcha"
	ChallengeHCaptcha   = "hcaptcha"
	ChallengeTurnstile  = "cloudflare_turnstile"
	ChallengeCloudflare = "cloudflare_challenge"
)

// DetectChallenge inspects the current page for known bot checks.
func (s *Session) DetectChallenge() (Challenge, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.Timeout)
	defer cancel()

	js := `(function() {
		if (document.querySelector('iframe[src*="recaptcha"], .g-recaptcha, [data-sitekey]')) {
			return 'recaptcha';
		}
		if (document.querySelector('iframe[src*="hcaptcha"], .h-captcha')) {
			return 'hcaptcha';
		}
		if (document.querySelector('iframe[src*="challenges.cloudflare.com"], .cf-turnstile')) {
			return 'turnstile';
		}
		var title = document.title.toLowerCase();
		if (title.indexOf('just a moment') !== -1 ||
			title.indexOf('checking your browser') !== -1 ||
			document.querySelector('form#challenge-form')) {
			return 'cloudflare';
		}
		return '';
	})()`

	var kind string
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &kind)); err != nil {
		return Challenge{}, err
	}

	switch kind {
	case "recaptcha":
		return Challenge{Found: true, Kind: ChallengeRecaptcha, Description: "Google reCAPTCHA on the page"}, nil
	case "hcaptcha":
		return Challenge{Found: true, Kind: ChallengeHCaptcha, Description: "hCaptcha on the page"}, nil
	case "turnstile":
		return Challenge{Found: true, Kind: ChallengeTurnstile, Description: "Cloudflare Turnstile on the page"}, nil
	case "cloudflare":
		return Challenge{Found: true, Kind: ChallengeCloudflare, Description: "Cloudflare challenge page"}, nil
	}
	return Challenge{}, nil
}

// DetectChallengeFromHTML is the browserless variant, used on raw page dumps.
func DetectChallengeFromHTML(html string) Challenge {
	html = strings.ToLower(html)

	switch {
	case strings.Contains(html, "g-recaptcha") || strings.Contains(html, "recaptcha"):
		return Challenge{Found: true, Kind: ChallengeRecaptcha, Description: "Google reCAPTCHA in the HTML"}
	case strings.Contains(html, "h-captcha") || strings.Contains(html, "hcaptcha"):
		return Challenge{Found: true, Kind: ChallengeHCaptcha, Description: "hCaptcha in the HTML"}
	case strings.Contains(html, "cf-turnstile") || strings.Contains(html, "challenges.cloudflare.com"):
		return Challenge{Found: true, Kind: ChallengeTurnstile, Description: "Cloudflare Turnstile in the HTML"}
	case strings.Contains(html, "just a moment") || strings.Contains(html, "challenge-form"):
		return Challenge{Found: true, Kind: ChallengeCloudflare, Description: "Cloudflare challenge page"}
	}
	return Challenge{}
}
