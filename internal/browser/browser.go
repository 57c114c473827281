// Package browser drives the headless portal session used to open listing
// pages and send contact messages.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Session wraps a chromedp browser with the portal login cookies applied.
type Session struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	config      Config
}

// Config holds browser automation settings
type Config struct {
	Headless      bool
	Timeout       time.Duration
	ScreenshotDir string
	UserAgent     string
	WindowWidth   int
	WindowHeight  int
}

// DefaultConfig returns sensible default browser settings
func DefaultConfig() Config {
	return Config{
		Headless:     true,
		Timeout:      60 * time.Second,
		UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		WindowWidth:  1920,
		WindowHeight: 1080,
	}
}

// Cookie matches one entry of an exported browser cookie file, the format
// produced by DevTools and cookie-export extensions.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// LoadCookies parses cookies from the inline JSON when given, else from the
// file at path. Unrecognized sameSite values become "Lax"; exports from
// other browsers use values Chrome refuses.
func LoadCookies(inline, path string) ([]Cookie, error) {
	raw := []byte(inline)
	if len(raw) == 0 {
		if path == "" {
			return nil, fmt.Errorf("no cookies configured")
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read cookies file: %w", err)
		}
		raw = b
	}

	var cookies []Cookie
	if err := json.Unmarshal(raw, &cookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookies: %w", err)
	}
	for i := range cookies {
		switch cookies[i].SameSite {
		case "Strict", "Lax", "None":
		default:
			cookies[i].SameSite = "Lax"
		}
	}
	return cookies, nil
}

// New creates a new browser session
func New(cfg Config) (*Session, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	return &Session{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		config:      cfg,
	}, nil
}

// Close cleans up browser resources
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// SetCookies installs the exported portal cookies into the browser.
func (s *Session) SetCookies(cookies []Cookie) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.Timeout)
	defer cancel()

	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			p := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure)
			if c.Expires > 0 {
				exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				p = p.WithExpires(&exp)
			}
			switch c.SameSite {
			case "Strict":
				p = p.WithSameSite(network.CookieSameSiteStrict)
			case "None":
				p = p.WithSameSite(network.CookieSameSiteNone)
			default:
				p = p.WithSameSite(network.CookieSameSiteLax)
			}
			if err := p.Do(ctx); err != nil {
				return fmt.Errorf("failed to set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}

// Visit navigates to a listing URL and waits for the page to settle.
func (s *Session) Visit(url string) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.Timeout)
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := chromedp.Run(ctx, chromedp.WaitReady("body")); err != nil {
		return fmt.Errorf("page load failed: %w", err)
	}

	// Small delay for dynamic content
	time.Sleep(2 * time.Second)
	return nil
}

// CurrentURL returns the URL of the current page, after any redirects.
func (s *Session) CurrentURL() (string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.Timeout)
	defer cancel()

	var url string
	err := chromedp.Run(ctx, chromedp.Location(&url))
	return url, err
}

// SessionValid reports whether the portal still accepts the cookies. The
// portal renders a "log ind" prompt on every page once the session expired.
func (s *Session) SessionValid() (bool, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.Timeout)
	defer cancel()

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html)); err != nil {
		return false, fmt.Errorf("failed to read page: %w", err)
	}
	return !strings.Contains(strings.ToLower(html), "log ind"), nil
}

// TakeScreenshot captures the current page state for debugging failures.
func (s *Session) TakeScreenshot(slug string) (string, error) {
	if s.config.ScreenshotDir == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.config.Timeout)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.config.ScreenshotDir, 0755); err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s_%d.png", slug, time.Now().Unix())
	path := filepath.Join(s.config.ScreenshotDir, filename)
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return "", err
	}
	return path, nil
}
