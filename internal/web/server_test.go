package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boligvagt/boligvagt/internal/config"
	"github.com/boligvagt/boligvagt/internal/history"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := history.NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{}
	cfg.Web.CSRFKey = "0123456789abcdef0123456789abcdef"
	srv, err := NewServer(cfg, store)
	if err != nil {
		t.Fatal(err)
	}
	return srv
}

func TestDashboardRenders(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.setupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Dashboard") {
		t.Errorf("dashboard page missing heading")
	}
	if !strings.Contains(body, "No listings processed yet") {
		t.Errorf("empty store should render the empty state")
	}
}

func TestDashboardListsHistory(t *testing.T) {
	srv := newTestServer(t)

	end := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	err := srv.historyStore.AddListing(&history.Listing{
		URL:        "https://www.boligportal.dk/lejebolig/valby/42",
		Title:      "2-room in Valby",
		Status:     history.StatusShortTerm,
		ShortTerm:  true,
		Confidence: "high",
		Reason:     "Date range",
		EndDate:    end,
	})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.setupRouter().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "2-room in Valby") {
		t.Errorf("listing title not rendered")
	}
	if !strings.Contains(body, "short_term") {
		t.Errorf("listing status not rendered")
	}
}

func TestAPIStats(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	srv.setupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stats history.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("Total = %d, want 0", stats.Total)
	}
}

func TestClassifyFormRenders(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/classify", nil)
	rec := httptest.NewRecorder()
	srv.setupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "csrf") {
		t.Errorf("classify form missing CSRF field")
	}
}

func TestClassifyPostRejectedWithoutCSRF(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/classify",
		strings.NewReader("text=udlejes+i+3+måneder"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.setupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 without a CSRF token", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.Allow("client") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("client") {
		t.Error("fourth request should be rejected")
	}
	if !rl.Allow("other") {
		t.Error("different key should not share the limit")
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := securityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); !strings.Contains(got, "no-store") {
		t.Errorf("Cache-Control = %q", got)
	}
}
