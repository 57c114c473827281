package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/boligvagt/boligvagt/internal/config"
)

func TestDiscordNotify(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatal(err)
		}
		got = payload["content"]
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL)
	err := d.Notify(context.Background(), EventSent, "https://www.boligportal.dk/lejebolig/42", "Valby 2500")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "Message sent") {
		t.Errorf("content missing event text: %q", got)
	}
	if !strings.Contains(got, "https://www.boligportal.dk/lejebolig/42") {
		t.Errorf("content missing listing URL: %q", got)
	}
	if !strings.Contains(got, "Valby 2500") {
		t.Errorf("content missing extra detail: %q", got)
	}
}

func TestDiscordNotifyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Invalid Webhook Token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL)
	err := d.Notify(context.Background(), EventFailed, "", "boom")
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error should carry status code: %v", err)
	}
}

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		event Event
		url   string
		extra string
		want  []string
	}{
		{EventBlocked, "https://x.dk/1", "husdyr", []string{"Blocked keyword", "husdyr", "https://x.dk/1"}},
		{EventShortTerm, "https://x.dk/2", "~3.0 months", []string{"Short-term listing", "~3.0 months"}},
		{EventExpiredSession, "", "cookies rejected", []string{"Session expired", "cookies rejected"}},
		{Event("unknown"), "https://x.dk/3", "", []string{"Notification", "https://x.dk/3"}},
	}
	for _, tt := range tests {
		got := formatMessage(tt.event, tt.url, tt.extra)
		for _, want := range tt.want {
			if !strings.Contains(got, want) {
				t.Errorf("formatMessage(%q) = %q, missing %q", tt.event, got, want)
			}
		}
	}
}

func TestEmailContent(t *testing.T) {
	subject, body := emailContent(EventSent, "https://x.dk/1", "Nice flat")
	if subject != "Boligvagt: message sent" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(body, "Nice flat") || !strings.Contains(body, "https://x.dk/1") {
		t.Errorf("body missing fields: %q", body)
	}
}

func TestValidateAddresses(t *testing.T) {
	if err := validateAddresses("a@example.com", "b@example.com"); err != nil {
		t.Errorf("valid addresses rejected: %v", err)
	}
	if err := validateAddresses("a@example.com\r\nBcc: c@evil.com", "b@example.com"); err == nil {
		t.Error("CRLF injection not rejected")
	}
	if err := validateAddresses("not-an-address", "b@example.com"); err == nil {
		t.Error("malformed address not rejected")
	}
}

type recordingNotifier struct {
	name   string
	events []Event
	fail   bool
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Notify(ctx context.Context, event Event, listingURL, extra string) error {
	r.events = append(r.events, event)
	if r.fail {
		return fmt.Errorf("%s is down", r.name)
	}
	return nil
}

func TestMultiDeliversToAll(t *testing.T) {
	a := &recordingNotifier{name: "a", fail: true}
	b := &recordingNotifier{name: "b"}
	m := Multi{a, b}

	err := m.Notify(context.Background(), EventSent, "https://x.dk/1", "")
	if err == nil {
		t.Error("expected error from failing notifier")
	}
	// The failure of a must not prevent delivery to b.
	if len(b.events) != 1 || b.events[0] != EventSent {
		t.Errorf("second notifier did not receive event: %v", b.events)
	}
}

func TestNewFromConfig(t *testing.T) {
	m := New(config.NotifyConfig{})
	if len(m) != 0 {
		t.Errorf("empty config should yield no notifiers, got %d", len(m))
	}

	m = New(config.NotifyConfig{
		DiscordWebhookURL: "https://discord.com/api/webhooks/1/x",
		SMTP:              config.SMTPConfig{Host: "smtp.example.com", Port: 587},
	})
	if len(m) != 2 {
		t.Fatalf("got %d notifiers, want 2", len(m))
	}
	if m[0].Name() != "discord" || m[1].Name() != "smtp" {
		t.Errorf("unexpected providers: %s, %s", m[0].Name(), m[1].Name())
	}
}
