package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultPollSeconds = 10
	defaultPortalFrom  = "noreply@boligportal.dk"
	defaultMessage     = "Hej! Jeg er interesseret i boligen."
)

func checkFilePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		return fmt.Errorf("config file %s has insecure permissions %04o; should be 0600", path, perm)
	}
	return nil
}

type Config struct {
	Inbox   InboxConfig   `yaml:"inbox"`
	Portal  PortalConfig  `yaml:"portal"`
	Browser BrowserConfig `yaml:"browser,omitempty"`
	Notify  NotifyConfig  `yaml:"notify,omitempty"`
	Web     WebConfig     `yaml:"web,omitempty"`
	History HistoryConfig `yaml:"history,omitempty"`
}

// InboxConfig holds IMAP settings for the mailbox receiving portal digests
type InboxConfig struct {
	Provider    string `yaml:"provider"` // "gmail", "outlook", "imap"
	Server      string `yaml:"server"`   // e.g., "imap.gmail.com"
	Port        int    `yaml:"port"`     // e.g., 993
	Email       string `yaml:"email"`    // Mailbox to monitor
	Password    string `yaml:"password"` // App password (not main password)
	Folder      string `yaml:"folder"`   // Folder to monitor (default: "INBOX")
	MaxAgeDays  int    `yaml:"max_age_days"`
	PollSeconds int    `yaml:"poll_seconds"`
}

// PortalConfig describes the listing portal side: which sender the digest
// emails come from, what message gets sent, and how listings are filtered.
type PortalConfig struct {
	FromAddress     string  `yaml:"from_address"`     // Digest sender, e.g. noreply@boligportal.dk
	Message         string  `yaml:"message"`          // Prewritten contact message
	BlockKeywords   string  `yaml:"block_keywords"`   // Comma separated, matched against listing text
	ThresholdMonths float64 `yaml:"threshold_months"` // Short-term cutoff for the classifier
}

// BrowserConfig holds settings for the headless portal session
type BrowserConfig struct {
	CookiesJSON   string `yaml:"cookies_json,omitempty"`   // Inline cookie export
	CookiesPath   string `yaml:"cookies_path,omitempty"`   // Path to cookie export file
	Headless      bool   `yaml:"headless"`
	TimeoutSec    int    `yaml:"timeout_sec"`
	ScreenshotDir string `yaml:"screenshot_dir,omitempty"` // Failure screenshots land here when set
}

type NotifyConfig struct {
	DiscordWebhookURL string         `yaml:"discord_webhook_url,omitempty"`
	SMTP              SMTPConfig     `yaml:"smtp,omitempty"`
	Resend            ResendConfig   `yaml:"resend,omitempty"`
	SendGrid          SendGridConfig `yaml:"sendgrid,omitempty"`
}

type SMTPConfig struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	From     string `yaml:"from,omitempty"`
	To       string `yaml:"to,omitempty"`
}

type ResendConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
	From   string `yaml:"from,omitempty"`
	To     string `yaml:"to,omitempty"`
}

type SendGridConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
	From   string `yaml:"from,omitempty"`
	To     string `yaml:"to,omitempty"`
}

type WebConfig struct {
	Addr    string `yaml:"addr,omitempty"` // e.g. "127.0.0.1:8790"
	CSRFKey string `yaml:"csrf_key,omitempty"`
}

type HistoryConfig struct {
	Path string `yaml:"path,omitempty"` // SQLite database path
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".boligvagt", "config.yaml")
}

func Load(path string) (*Config, error) {
	if err := checkFilePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: %v\n", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Inbox.Folder == "" {
		c.Inbox.Folder = "INBOX"
	}
	if c.Inbox.Provider == "gmail" && c.Inbox.Server == "" {
		c.Inbox.Server = "imap.gmail.com"
		c.Inbox.Port = 993
	}
	if c.Inbox.Provider == "outlook" && c.Inbox.Server == "" {
		c.Inbox.Server = "outlook.office365.com"
		c.Inbox.Port = 993
	}
	if c.Inbox.MaxAgeDays == 0 {
		c.Inbox.MaxAgeDays = 3
	}
	if c.Inbox.PollSeconds == 0 {
		c.Inbox.PollSeconds = defaultPollSeconds
	}
	if c.Portal.FromAddress == "" {
		c.Portal.FromAddress = defaultPortalFrom
	}
	if c.Portal.Message == "" {
		c.Portal.Message = defaultMessage
	}
	if c.Browser.TimeoutSec == 0 {
		c.Browser.TimeoutSec = 60
	}
	c.Browser.Headless = true
}

// applyEnvOverrides keeps the original deployment knobs working: settings
// that were environment variables before the YAML config existed still win
// over the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BOLIGPORTAL_FROM"); v != "" {
		c.Portal.FromAddress = v
	}
	if v := os.Getenv("PREWRITTEN_MESSAGE"); v != "" {
		c.Portal.Message = v
	}
	if v := os.Getenv("BLOCK_KEYWORDS"); v != "" {
		c.Portal.BlockKeywords = v
	}
	if v := os.Getenv("SHORT_TERM_MONTHS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Portal.ThresholdMonths = f
		}
	}
	if v := os.Getenv("POLL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Inbox.PollSeconds = n
		}
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		c.Notify.DiscordWebhookURL = v
	}
	if v := os.Getenv("COOKIES_JSON"); v != "" {
		c.Browser.CookiesJSON = v
	}
	if v := os.Getenv("COOKIES_JSON_PATH"); v != "" {
		c.Browser.CookiesPath = v
	}
}

// BlockKeywordList splits the comma separated block keywords, trimmed and
// lowercased, dropping empties.
func (c *Config) BlockKeywordList() []string {
	var out []string
	for _, kw := range strings.Split(c.Portal.BlockKeywords, ",") {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) Validate() error {
	if c.Portal.FromAddress == "" {
		return fmt.Errorf("portal: from_address is required")
	}
	if c.Portal.Message == "" {
		return fmt.Errorf("portal: message is required")
	}
	if c.Portal.ThresholdMonths < 0 {
		return fmt.Errorf("portal: threshold_months must not be negative")
	}
	if c.Browser.CookiesJSON == "" && c.Browser.CookiesPath == "" {
		return fmt.Errorf("browser: cookies_json or cookies_path is required for the portal session")
	}
	return nil
}

// ValidateInbox validates the IMAP settings (only checked when polling mail)
func (c *Config) ValidateInbox() error {
	if c.Inbox.Email == "" {
		return fmt.Errorf("inbox: email address is required")
	}
	if c.Inbox.Password == "" {
		return fmt.Errorf("inbox: password (app password) is required")
	}
	if c.Inbox.Server == "" {
		return fmt.Errorf("inbox: IMAP server is required")
	}
	if c.Inbox.Port == 0 {
		return fmt.Errorf("inbox: IMAP port is required")
	}
	return nil
}
