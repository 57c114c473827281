package inbox

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"

	"github.com/boligvagt/boligvagt/internal/config"
)

// Monitor watches a mailbox for listing digest emails from the portal.
type Monitor struct {
	config config.InboxConfig
	sender string // digest sender address, e.g. noreply@boligportal.dk
	client *client.Client
}

// Email is a parsed digest email.
type Email struct {
	UID        uint32 // IMAP UID for flag operations
	MessageID  string
	From       string
	Subject    string
	Body       string
	HTMLBody   string
	ReceivedAt time.Time
}

// maxDigestsPerFetch caps how many digests a single poll handles.
const maxDigestsPerFetch = 10

// NewMonitor creates a monitor for digest emails from the given sender.
func NewMonitor(cfg config.InboxConfig, sender string) *Monitor {
	return &Monitor{config: cfg, sender: strings.ToLower(sender)}
}

// Connect establishes the IMAP connection
func (m *Monitor) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", m.config.Server, m.config.Port)

	log.Printf("Connecting to IMAP server %s...", addr)

	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(m.config.Email, m.config.Password); err != nil {
		c.Logout()
		return fmt.Errorf("failed to login: %w", err)
	}

	m.client = c
	log.Printf("Logged in as %s", m.config.Email)
	return nil
}

// Disconnect closes the IMAP connection
func (m *Monitor) Disconnect() error {
	if m.client != nil {
		return m.client.Logout()
	}
	return nil
}

// FetchUnreadDigests returns unseen digest emails from the portal sender,
// newest last, limited to maxDigestsPerFetch.
func (m *Monitor) FetchUnreadDigests(ctx context.Context) ([]Email, error) {
	if m.client == nil {
		return nil, fmt.Errorf("not connected to IMAP server")
	}

	mbox, err := m.client.Select(m.config.Folder, false)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", m.config.Folder, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	since := time.Now().AddDate(0, 0, -m.config.MaxAgeDays)
	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Header.Add("From", m.sender)

	uids, err := m.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search digests: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	if len(uids) > maxDigestsPerFetch {
		uids = uids[len(uids)-maxDigestsPerFetch:]
	}

	log.Printf("Found %d unread digest(s) since %s", len(uids), since.Format("2006-01-02"))

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	// Peek so the fetch itself does not mark anything read; digests are
	// flagged seen only after their listings were handled.
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- m.client.UidFetch(seqSet, items, messages)
	}()

	var emails []Email
	for msg := range messages {
		email, err := parseMessage(msg, section)
		if err != nil {
			log.Printf("Warning: failed to parse message: %v", err)
			continue
		}
		if email != nil {
			emails = append(emails, *email)
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return emails, nil
}

// parseMessage converts an IMAP message to our Email struct
func parseMessage(msg *imap.Message, section *imap.BodySectionName) (*Email, error) {
	if msg == nil || msg.Envelope == nil {
		return nil, nil
	}

	email := &Email{
		UID:        msg.Uid,
		MessageID:  msg.Envelope.MessageId,
		Subject:    msg.Envelope.Subject,
		ReceivedAt: msg.Envelope.Date,
	}
	if len(msg.Envelope.From) > 0 {
		email.From = msg.Envelope.From[0].Address()
	}

	r := msg.GetBody(section)
	if r == nil {
		return email, nil
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return email, nil // Return without body on parse error
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			body, _ := io.ReadAll(p.Body)

			if strings.HasPrefix(ct, "text/plain") && email.Body == "" {
				email.Body = string(body)
			} else if strings.HasPrefix(ct, "text/html") && email.HTMLBody == "" {
				email.HTMLBody = string(body)
			}
		}
	}

	return email, nil
}

// MarkSeen flags the given messages as read so the next poll skips them.
func (m *Monitor) MarkSeen(uids []uint32) error {
	if m.client == nil {
		return fmt.Errorf("not connected to IMAP server")
	}
	if len(uids) == 0 {
		return nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}
	if err := m.client.UidStore(seqSet, item, flags, nil); err != nil {
		return fmt.Errorf("failed to mark messages seen: %w", err)
	}
	return nil
}

// WatchForDigests blocks on IMAP IDLE and invokes callback for every new
// digest email from the portal sender.
func (m *Monitor) WatchForDigests(ctx context.Context, callback func(Email)) error {
	if m.client == nil {
		return fmt.Errorf("not connected to IMAP server")
	}

	if _, err := m.client.Select(m.config.Folder, false); err != nil {
		return fmt.Errorf("failed to select mailbox: %w", err)
	}

	updates := make(chan client.Update)
	m.client.Updates = updates

	stop := make(chan struct{})
	idleDone := make(chan error, 1)

	go func() {
		idleDone <- m.client.Idle(stop, nil)
	}()

	log.Printf("Watching for new digests (press Ctrl+C to stop)...")

	for {
		select {
		case <-ctx.Done():
			close(stop)
			return ctx.Err()
		case update := <-updates:
			switch u := update.(type) {
			case *client.MailboxUpdate:
				log.Printf("New mail detected: %d messages", u.Mailbox.Messages)
				close(stop)
				<-idleDone

				emails, err := m.FetchUnreadDigests(ctx)
				if err != nil {
					log.Printf("Error fetching new digests: %v", err)
				}
				for _, email := range emails {
					callback(email)
				}

				// Restart IDLE
				stop = make(chan struct{})
				go func() {
					idleDone <- m.client.Idle(stop, nil)
				}()
			}
		case err := <-idleDone:
			if err != nil {
				return fmt.Errorf("IDLE error: %w", err)
			}
		}
	}
}
