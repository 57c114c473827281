package template

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

// MessageData contains all data available to contact message templates
type MessageData struct {
	// Listing info
	Title   string
	Address string
	URL     string

	// Metadata
	Date  string
	Year  int
	Month string
}

// Engine renders the configured contact message per listing. The message is
// plain text with optional placeholders like {{.Title}} and {{.Address}};
// a message without placeholders renders unchanged.
type Engine struct {
	tmpl *template.Template
}

// NewEngine parses the configured contact message once up front so a broken
// placeholder fails at startup instead of mid-run.
func NewEngine(message string) (*Engine, error) {
	tmpl, err := template.New("message").Option("missingkey=error").Parse(message)
	if err != nil {
		return nil, fmt.Errorf("failed to parse contact message: %w", err)
	}
	return &Engine{tmpl: tmpl}, nil
}

// Render generates the contact message for one listing
func (e *Engine) Render(title, address, url string) (string, error) {
	now := time.Now()
	data := MessageData{
		Title:   title,
		Address: address,
		URL:     url,
		Date:    now.Format("January 2, 2006"),
		Year:    now.Year(),
		Month:   now.Format("January"),
	}

	var buf bytes.Buffer
	if err := e.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render contact message: %w", err)
	}
	return buf.String(), nil
}
