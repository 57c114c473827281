package web

import (
	"context"
	"crypto/rand"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"

	"github.com/boligvagt/boligvagt/internal/config"
	"github.com/boligvagt/boligvagt/internal/history"
	"github.com/boligvagt/boligvagt/internal/term"
)

//go:embed static/*
var staticFS embed.FS

//go:embed templates/*
var templatesFS embed.FS

const (
	defaultAddr       = "127.0.0.1:8790"
	defaultRateLimit  = 30
	defaultRateWindow = time.Minute
)

// RateLimiter caps how often a client key may hit a handler within a window.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) filterRecent(times []time.Time, windowStart time.Time) []time.Time {
	recent := times[:0]
	for _, t := range times {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}
	return recent
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	recent := rl.filterRecent(rl.requests[key], windowStart)
	if len(recent) >= rl.limit {
		rl.requests[key] = recent
		return false
	}
	rl.requests[key] = append(recent, now)
	return true
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		windowStart := time.Now().Add(-rl.window)
		for key, times := range rl.requests {
			recent := rl.filterRecent(times, windowStart)
			if len(recent) == 0 {
				delete(rl.requests, key)
			} else {
				rl.requests[key] = recent
			}
		}
		rl.mu.Unlock()
	}
}

// Server exposes a local dashboard over the listing history plus a manual
// classifier form for pasting listing text.
type Server struct {
	config       *config.Config
	historyStore *history.Store
	templates    map[string]*template.Template
	httpServer   *http.Server
	addr         string
	csrfKey      []byte
	rateLimiter  *RateLimiter
}

func NewServer(cfg *config.Config, historyStore *history.Store) (*Server, error) {
	addr := cfg.Web.Addr
	if addr == "" {
		addr = defaultAddr
	}

	csrfKey := []byte(cfg.Web.CSRFKey)
	if len(csrfKey) == 0 {
		csrfKey = make([]byte, 32)
		if _, err := rand.Read(csrfKey); err != nil {
			return nil, fmt.Errorf("failed to generate CSRF key: %w", err)
		}
	}

	s := &Server{
		config:       cfg,
		historyStore: historyStore,
		addr:         addr,
		csrfKey:      csrfKey,
		rateLimiter:  NewRateLimiter(defaultRateLimit, defaultRateWindow),
	}

	tmpl, err := s.parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	s.templates = tmpl
	return s, nil
}

// parseTemplates loads and parses all HTML templates. Each page gets its own
// template set to avoid "content" block conflicts.
func (s *Server) parseTemplates() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006 15:04")
		},
		// formatDate accepts both the value and pointer form used by the
		// history and classifier types.
		"formatDate": func(v interface{}) string {
			var t time.Time
			switch d := v.(type) {
			case time.Time:
				t = d
			case *time.Time:
				if d == nil {
					return ""
				}
				t = *d
			}
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
	}

	layoutContent, err := templatesFS.ReadFile("templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to read layout template: %w", err)
	}

	templates := make(map[string]*template.Template)
	err = fs.WalkDir(templatesFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path == "templates/layout.html" || !strings.HasSuffix(path, ".html") {
			return nil
		}

		content, err := templatesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", path, err)
		}

		name := path[len("templates/"):]
		pageTmpl := template.New(name).Funcs(funcs)
		if _, err := pageTmpl.Parse(string(layoutContent)); err != nil {
			return fmt.Errorf("failed to parse layout for %s: %w", name, err)
		}
		if _, err := pageTmpl.Parse(string(content)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		templates[name] = pageTmpl
		return nil
	})
	if err != nil {
		return nil, err
	}
	return templates, nil
}

// Start runs the web server until it is shut down.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.setupRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	fmt.Printf("Starting Boligvagt dashboard at http://%s\n", s.addr)
	fmt.Println("Press Ctrl+C to stop")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(securityHeaders)

	// CSRF protection - the dashboard only binds to localhost
	csrfMiddleware := csrf.Protect(
		s.csrfKey,
		csrf.Secure(false), // Allow HTTP for localhost
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.TrustedOrigins([]string{"localhost", "127.0.0.1", s.addr}),
	)
	r.Use(csrfMiddleware)

	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	r.Get("/", s.handleDashboard)
	r.Get("/classify", s.handleClassify)
	r.Post("/classify", s.handleClassify)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleAPIStats)
		r.Get("/listings", s.handleAPIListings)
	})

	return r
}

// securityHeaders adds security headers to all responses
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; img-src 'self' data:; frame-ancestors 'none'; form-action 'self'; base-uri 'self'")
		if !strings.HasPrefix(r.URL.Path, "/static/") {
			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.historyStore.GetStats()
	if err != nil {
		log.Printf("Warning: failed to load stats: %v", err)
	}
	listings, err := s.historyStore.GetRecentListings(50)
	if err != nil {
		log.Printf("Warning: failed to load listings: %v", err)
	}

	s.render(w, "dashboard.html", map[string]interface{}{
		"Title":    "Dashboard",
		"Stats":    stats,
		"Listings": listings,
	})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"Title":     "Classify",
		"Threshold": s.threshold(),
		"CSRFField": csrf.TemplateField(r),
	}

	if r.Method == http.MethodPost {
		if !s.rateLimiter.Allow(r.RemoteAddr) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		text := r.FormValue("text")
		if strings.TrimSpace(text) == "" {
			data["Error"] = "Paste a listing text first."
		} else {
			result := term.Classify(text, s.threshold(), time.Now())
			data["Text"] = text
			data["Result"] = result
			data["Verdict"] = verdict(result)
		}
	}

	s.render(w, "classify.html", data)
}

func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.historyStore.GetStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (s *Server) handleAPIListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.historyStore.GetRecentListings(100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, listings)
}

func (s *Server) threshold() float64 {
	if s.config != nil && s.config.Portal.ThresholdMonths > 0 {
		return s.config.Portal.ThresholdMonths
	}
	return term.DefaultThreshold()
}

// verdict renders a classifier result as a one-line summary for the page.
func verdict(res term.Result) string {
	if res.IsShortTerm {
		return fmt.Sprintf("Short-term (%s confidence)", res.Confidence)
	}
	return fmt.Sprintf("Not short-term (%s confidence)", res.Confidence)
}

func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	tmpl, ok := s.templates[name]
	if !ok {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		log.Printf("Template error for %s: %v", name, err)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("JSON encode error: %v", err)
	}
}
