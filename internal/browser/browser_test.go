package browser

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCookies(t *testing.T) {
	raw := `[
		{"name": "sessionid", "value": "abc", "domain": ".boligportal.dk", "path": "/", "sameSite": "Lax", "secure": true},
		{"name": "csrftoken", "value": "xyz", "domain": ".boligportal.dk", "path": "/", "sameSite": "no_restriction"},
		{"name": "lang", "value": "da", "domain": ".boligportal.dk", "path": "/"}
	]`

	cookies, err := LoadCookies(raw, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(cookies) != 3 {
		t.Fatalf("got %d cookies, want 3", len(cookies))
	}
	if cookies[0].SameSite != "Lax" {
		t.Errorf("valid sameSite rewritten to %q", cookies[0].SameSite)
	}
	// Unknown and missing sameSite values both normalize to Lax.
	if cookies[1].SameSite != "Lax" || cookies[2].SameSite != "Lax" {
		t.Errorf("sameSite not normalized: %q, %q", cookies[1].SameSite, cookies[2].SameSite)
	}
}

func TestLoadCookiesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	if err := os.WriteFile(path, []byte(`[{"name":"a","value":"b"}]`), 0600); err != nil {
		t.Fatal(err)
	}

	cookies, err := LoadCookies("", path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cookies) != 1 || cookies[0].Name != "a" {
		t.Errorf("unexpected cookies: %+v", cookies)
	}

	if _, err := LoadCookies("", ""); err == nil {
		t.Error("expected error when nothing is configured")
	}
}

func TestAlreadyContacted(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.boligportal.dk/indbakke/12345", true},
		{"https://www.boligportal.dk/Indbakke", true},
		{"https://www.boligportal.dk/en/inbox/12345", true},
		{"https://www.boligportal.dk/lejebolig/valby/12345", false},
	}
	for _, tt := range tests {
		if got := AlreadyContacted(tt.url); got != tt.want {
			t.Errorf("AlreadyContacted(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestDetectChallengeFromHTML(t *testing.T) {
	tests := []struct {
		name string
		html string
		kind string
	}{
		{"recaptcha", `<div class="g-recaptcha" data-sitekey="x"></div>`, ChallengeRecaptcha},
		{"hcaptcha", `<div class="h-captcha"></div>`, ChallengeHCaptcha},
		{"turnstile", `<iframe src="https://challenges.cloudflare.com/x"></iframe>`, ChallengeTurnstile},
		{"cloudflare page", `<title>Just a moment...</title>`, ChallengeCloudflare},
		{"clean page", `<div class="css-1o5zkyw">Lejlighed i Valby</div>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectChallengeFromHTML(tt.html)
			if got.Found != (tt.kind != "") {
				t.Fatalf("Found = %v", got.Found)
			}
			if got.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.kind)
			}
		})
	}
}

func TestJSStringArray(t *testing.T) {
	got := jsStringArray([]string{"Send", "Skriv til \"udlejer\""})
	want := `["Send","Skriv til \"udlejer\""]`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}
