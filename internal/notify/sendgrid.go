package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/boligvagt/boligvagt/internal/config"
)

// SendGridNotifier mails event notifications via the SendGrid API.
type SendGridNotifier struct {
	client *sendgrid.Client
	from   string
	to     string
}

func NewSendGrid(cfg config.SendGridConfig) *SendGridNotifier {
	return &SendGridNotifier{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   cfg.From,
		to:     cfg.To,
	}
}

func (s *SendGridNotifier) Name() string { return "sendgrid" }

func (s *SendGridNotifier) Notify(ctx context.Context, event Event, listingURL, extra string) error {
	subject, body := emailContent(event, listingURL, extra)
	if err := validateAddresses(s.from, s.to); err != nil {
		return err
	}

	msg := sgmail.NewV3MailInit(
		sgmail.NewEmail("", s.from), subject,
		sgmail.NewEmail("", s.to),
		sgmail.NewContent("text/plain", body),
	)
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid send failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned %d", resp.StatusCode)
	}
	return nil
}
