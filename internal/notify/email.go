package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/boligvagt/boligvagt/internal/config"
)

// SMTPNotifier mails event notifications through a plain SMTP account.
type SMTPNotifier struct {
	config config.SMTPConfig
}

func NewSMTP(cfg config.SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{config: cfg}
}

func (s *SMTPNotifier) Name() string { return "smtp" }

func (s *SMTPNotifier) Notify(ctx context.Context, event Event, listingURL, extra string) error {
	subject, body := emailContent(event, listingURL, extra)
	if err := validateAddresses(s.config.From, s.config.To); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", s.config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", s.config.To))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	if err := s.sendWithTLS(addr, auth, []byte(msg.String())); err != nil {
		return sanitizeSMTPError(err)
	}
	return nil
}

func (s *SMTPNotifier) sendWithTLS(addr string, auth smtp.Auth, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{
		ServerName: s.config.Host,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("TLS connection failed: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("SMTP client creation failed: %w", err)
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	if err := client.Mail(s.config.From); err != nil {
		return fmt.Errorf("sender rejected: %w", err)
	}
	if err := client.Rcpt(s.config.To); err != nil {
		return fmt.Errorf("recipient rejected: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data command failed: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("message write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("message finalization failed: %w", err)
	}
	return client.Quit()
}

// sanitizeSMTPError strips server details that may leak credentials or
// internal hostnames into notification logs.
func sanitizeSMTPError(err error) error {
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "auth") {
		return fmt.Errorf("SMTP authentication failed")
	}
	if strings.Contains(s, "certificate") {
		return fmt.Errorf("TLS certificate error")
	}
	return fmt.Errorf("SMTP error: check your configuration")
}

// validateAddresses checks for injection characters and RFC 5322 compliance.
func validateAddresses(from, to string) error {
	for _, addr := range []string{from, to} {
		if strings.ContainsAny(addr, "\r\n,;") {
			return fmt.Errorf("email address contains invalid characters")
		}
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("invalid email address: %w", err)
		}
	}
	return nil
}

// emailContent renders an event as a subject line and plain-text body
// shared by all the email providers.
func emailContent(event Event, listingURL, extra string) (subject, body string) {
	switch event {
	case EventSent:
		subject = "Boligvagt: message sent"
	case EventAlready:
		subject = "Boligvagt: already contacted"
	case EventBlocked:
		subject = "Boligvagt: blocked keyword"
	case EventSkipped:
		subject = "Boligvagt: listing skipped"
	case EventShortTerm:
		subject = "Boligvagt: short-term listing"
	case EventFailed:
		subject = "Boligvagt: send failed"
	case EventParsed:
		subject = "Boligvagt: digest parsed"
	case EventExpiredSession:
		subject = "Boligvagt: session expired"
	default:
		subject = "Boligvagt: notification"
	}

	var b strings.Builder
	b.WriteString("Event: " + string(event) + "\n")
	if extra != "" {
		b.WriteString("Details: " + extra + "\n")
	}
	if listingURL != "" {
		b.WriteString("Listing: " + listingURL + "\n")
	}
	return subject, b.String()
}
