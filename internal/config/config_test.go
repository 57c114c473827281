package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
inbox:
  provider: gmail
  email: me@example.com
  password: app-password
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Inbox.Server != "imap.gmail.com" || cfg.Inbox.Port != 993 {
		t.Errorf("gmail defaults not applied: %s:%d", cfg.Inbox.Server, cfg.Inbox.Port)
	}
	if cfg.Inbox.Folder != "INBOX" {
		t.Errorf("folder = %q, want INBOX", cfg.Inbox.Folder)
	}
	if cfg.Portal.FromAddress != defaultPortalFrom {
		t.Errorf("from_address = %q, want default", cfg.Portal.FromAddress)
	}
	if cfg.Inbox.PollSeconds != defaultPollSeconds {
		t.Errorf("poll_seconds = %d, want %d", cfg.Inbox.PollSeconds, defaultPollSeconds)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BLOCK_KEYWORDS", "Delebolig, roommate ,")
	t.Setenv("POLL_SECONDS", "30")
	t.Setenv("SHORT_TERM_MONTHS", "8")

	path := writeConfig(t, `
portal:
  block_keywords: "ignored"
  threshold_months: 6
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Inbox.PollSeconds != 30 {
		t.Errorf("poll_seconds = %d, want 30", cfg.Inbox.PollSeconds)
	}
	if cfg.Portal.ThresholdMonths != 8 {
		t.Errorf("threshold_months = %g, want 8", cfg.Portal.ThresholdMonths)
	}

	got := cfg.BlockKeywordList()
	want := []string{"delebolig", "roommate"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("BlockKeywordList = %v, want %v", got, want)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without cookies")
	}

	cfg.Browser.CookiesPath = "/tmp/cookies.json"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
