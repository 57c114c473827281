package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Discord posts event messages to a webhook URL.
type Discord struct {
	webhookURL string
	client     *http.Client
}

func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Notify(ctx context.Context, event Event, listingURL, extra string) error {
	payload, err := json.Marshal(map[string]string{
		"content": formatMessage(event, listingURL, extra),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	// Discord answers 204 on success. Anything else carries an error body.
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

func formatMessage(event Event, listingURL, extra string) string {
	var head string
	switch event {
	case EventSent:
		head = "✅ **Message sent**"
	case EventAlready:
		head = "ℹ️ **Already contacted**"
	case EventBlocked:
		head = "🚫 **Blocked keyword**"
	case EventSkipped:
		head = "⏭️ **Skipped**"
	case EventShortTerm:
		head = "⏳ **Short-term listing**"
	case EventFailed:
		head = "⚠️ **Failed to send**"
	case EventParsed:
		head = "🧩 **Parsed email**"
	case EventExpiredSession:
		head = "🔒 **Session expired**"
	default:
		head = "ℹ️ **Notification**"
	}
	if extra != "" {
		head += " - " + extra
	}
	if listingURL != "" {
		head += "\n🔗 " + listingURL
	}
	return head
}
