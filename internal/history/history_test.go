package history

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAddAndQueryListings(t *testing.T) {
	store := newTestStore(t)

	sent := &Listing{
		URL:    "https://www.boligportal.dk/lejebolig/1",
		Title:  "2-værelses lejlighed i Valby",
		Status: StatusSent,
	}
	if err := store.AddListing(sent); err != nil {
		t.Fatal(err)
	}
	if sent.ID == 0 {
		t.Error("expected listing id to be set")
	}

	flagged := &Listing{
		URL:        "https://www.boligportal.dk/lejebolig/2",
		Status:     StatusShortTerm,
		ShortTerm:  true,
		Confidence: "high",
		Reason:     "Date range 2025-09-18 → 2026-06-26 (~9.3 months ≤ 12)",
		EndDate:    time.Date(2026, 6, 26, 0, 0, 0, 0, time.UTC),
	}
	if err := store.AddListing(flagged); err != nil {
		t.Fatal(err)
	}

	ok, err := store.HasListing(sent.URL)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("HasListing = false for stored url")
	}
	ok, err = store.HasListing("https://www.boligportal.dk/lejebolig/999")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("HasListing = true for unknown url")
	}

	recent, err := store.GetRecentListings(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d listings, want 2", len(recent))
	}
	for _, l := range recent {
		if l.URL == flagged.URL {
			if !l.ShortTerm || l.Confidence != "high" {
				t.Errorf("classification columns lost: %+v", l)
			}
			if l.EndDate.IsZero() {
				t.Error("end date not persisted")
			}
		}
	}

	stats, err := store.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 || stats.Sent != 1 || stats.ShortTerm != 1 {
		t.Errorf("stats = %+v, want total 2, sent 1, short_term 1", stats)
	}
}

func TestStatsOnEmptyStore(t *testing.T) {
	store := newTestStore(t)

	stats, err := store.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 0 || stats.Sent != 0 {
		t.Errorf("stats on empty store = %+v", stats)
	}

	sent, failed, err := store.GetStatsSince(time.Now().AddDate(0, -1, 0))
	if err != nil {
		t.Fatal(err)
	}
	if sent != 0 || failed != 0 {
		t.Errorf("stats since = %d/%d, want 0/0", sent, failed)
	}
}

func TestProcessedMessages(t *testing.T) {
	store := newTestStore(t)

	ok, err := store.IsMessageProcessed("42")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("unseen message reported processed")
	}

	if err := store.MarkMessageProcessed("42"); err != nil {
		t.Fatal(err)
	}
	// Marking twice must not error.
	if err := store.MarkMessageProcessed("42"); err != nil {
		t.Fatal(err)
	}

	ok, err = store.IsMessageProcessed("42")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("marked message not reported processed")
	}
}
