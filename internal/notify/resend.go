package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/boligvagt/boligvagt/internal/config"
)

// ResendNotifier mails event notifications via the Resend API.
type ResendNotifier struct {
	client *resend.Client
	from   string
	to     string
}

func NewResend(cfg config.ResendConfig) *ResendNotifier {
	return &ResendNotifier{
		client: resend.NewClient(cfg.APIKey),
		from:   cfg.From,
		to:     cfg.To,
	}
}

func (r *ResendNotifier) Name() string { return "resend" }

func (r *ResendNotifier) Notify(ctx context.Context, event Event, listingURL, extra string) error {
	subject, body := emailContent(event, listingURL, extra)
	if err := validateAddresses(r.from, r.to); err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{r.to},
		Subject: subject,
		Text:    body,
	}
	if _, err := r.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}
	return nil
}
