package notify

import (
	"context"
	"errors"
	"log"

	"github.com/boligvagt/boligvagt/internal/config"
)

// Event identifies what happened to a listing during a run. The values
// double as status strings in the history database.
type Event string

const (
	EventParsed         Event = "parsed"
	EventSent           Event = "sent"
	EventAlready        Event = "already"
	EventBlocked        Event = "blocked"
	EventSkipped        Event = "skipped"
	EventShortTerm      Event = "short_term"
	EventFailed         Event = "failed"
	EventExpiredSession Event = "expired_session"
)

// Notifier delivers a one-line event notification to some channel.
type Notifier interface {
	Notify(ctx context.Context, event Event, listingURL, extra string) error
	Name() string
}

// New builds one notifier per configured provider. An empty config yields
// an empty Multi, which is valid and does nothing.
func New(cfg config.NotifyConfig) Multi {
	var m Multi
	if cfg.DiscordWebhookURL != "" {
		m = append(m, NewDiscord(cfg.DiscordWebhookURL))
	}
	if cfg.SMTP.Host != "" {
		m = append(m, NewSMTP(cfg.SMTP))
	}
	if cfg.Resend.APIKey != "" {
		m = append(m, NewResend(cfg.Resend))
	}
	if cfg.SendGrid.APIKey != "" {
		m = append(m, NewSendGrid(cfg.SendGrid))
	}
	return m
}

// Multi fans an event out to every notifier. One provider failing does not
// stop delivery to the rest.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Notify(ctx context.Context, event Event, listingURL, extra string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event, listingURL, extra); err != nil {
			log.Printf("Warning: %s notification failed: %v", n.Name(), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
