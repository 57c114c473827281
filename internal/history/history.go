package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Status is the terminal outcome recorded for a processed listing.
type Status string

const (
	StatusSent      Status = "sent"       // Contact message delivered
	StatusAlready   Status = "already"    // Portal redirected to the inbox, contacted before
	StatusBlocked   Status = "blocked"    // A block keyword matched the listing text
	StatusShortTerm Status = "short_term" // Classifier flagged a short lease with high confidence
	StatusSkipped   Status = "skipped"    // Listing dropped before contact for another reason
	StatusFailed    Status = "failed"     // Browser or portal error
)

// Listing is one processed listing URL with its outcome and, when the
// classifier ran, its verdict.
type Listing struct {
	ID           int64
	URL          string
	Title        string
	Status       Status
	BlockKeyword string
	ShortTerm    bool
	Confidence   string
	Reason       string
	EndDate      time.Time
	ProcessedAt  time.Time
	CreatedAt    time.Time
}

type Store struct {
	db *sql.DB
}

func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "boligvagt.db"
	}
	return filepath.Join(home, ".boligvagt", "history.db")
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrate() error {
	// Add columns introduced after the first schema; errors mean the column
	// already exists or the table is about to be created below.
	s.db.Exec(`ALTER TABLE listings ADD COLUMN end_date DATETIME`)
	s.db.Exec(`ALTER TABLE listings ADD COLUMN block_keyword TEXT`)

	query := `
	CREATE TABLE IF NOT EXISTS listings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		title TEXT,
		status TEXT NOT NULL,
		block_keyword TEXT,
		is_short_term INTEGER DEFAULT 0,
		confidence TEXT,
		reason TEXT,
		end_date DATETIME,
		processed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_listings_url ON listings(url);
	CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);
	CREATE INDEX IF NOT EXISTS idx_listings_processed_at ON listings(processed_at);

	-- Digest emails already handled, so restarts do not re-contact.
	CREATE TABLE IF NOT EXISTS processed_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL UNIQUE,
		processed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// scanListing handles nullable columns when scanning a row
func scanListing(scanner interface{ Scan(...any) error }) (*Listing, error) {
	var l Listing
	var title, blockKeyword, confidence, reason sql.NullString
	var shortTerm sql.NullInt64
	var endDate, processedAt, createdAt sql.NullTime

	err := scanner.Scan(&l.ID, &l.URL, &title, &l.Status, &blockKeyword,
		&shortTerm, &confidence, &reason, &endDate, &processedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	l.Title = title.String
	l.BlockKeyword = blockKeyword.String
	l.ShortTerm = shortTerm.Int64 != 0
	l.Confidence = confidence.String
	l.Reason = reason.String
	l.EndDate = endDate.Time
	l.ProcessedAt = processedAt.Time
	l.CreatedAt = createdAt.Time
	return &l, nil
}

const listingColumns = `id, url, title, status, block_keyword, is_short_term, confidence, reason, end_date, processed_at, created_at`

func (s *Store) AddListing(l *Listing) error {
	if l.ProcessedAt.IsZero() {
		l.ProcessedAt = time.Now()
	}

	var endDate any
	if !l.EndDate.IsZero() {
		endDate = l.EndDate
	}

	result, err := s.db.Exec(`
	INSERT INTO listings (url, title, status, block_keyword, is_short_term, confidence, reason, end_date, processed_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.URL, l.Title, l.Status, l.BlockKeyword, l.ShortTerm,
		l.Confidence, l.Reason, endDate, l.ProcessedAt, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	l.ID = id
	return nil
}

// HasListing reports whether the URL was processed before, regardless of
// outcome.
func (s *Store) HasListing(url string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM listings WHERE url = ?`, url).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query listing: %w", err)
	}
	return n > 0, nil
}

func (s *Store) GetRecentListings(limit int) ([]Listing, error) {
	rows, err := s.db.Query(`
	SELECT `+listingColumns+` FROM listings ORDER BY processed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

// Stats counts processed listings by outcome.
type Stats struct {
	Total     int
	Sent      int
	Already   int
	Blocked   int
	ShortTerm int
	Skipped   int
	Failed    int
}

func (s *Store) GetStats() (Stats, error) {
	var st Stats
	err := s.db.QueryRow(`SELECT COUNT(*),
		SUM(CASE WHEN status='sent' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status='already' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status='blocked' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status='short_term' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status='skipped' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status='failed' THEN 1 ELSE 0 END)
	FROM listings`).Scan(&st.Total, nullInt{&st.Sent}, nullInt{&st.Already},
		nullInt{&st.Blocked}, nullInt{&st.ShortTerm}, nullInt{&st.Skipped}, nullInt{&st.Failed})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	return st, nil
}

func (s *Store) GetStatsSince(since time.Time) (sent, failed int, err error) {
	var sentNull, failedNull sql.NullInt64
	err = s.db.QueryRow(`SELECT SUM(CASE WHEN status='sent' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status='failed' THEN 1 ELSE 0 END) FROM listings WHERE processed_at >= ?`,
		since).Scan(&sentNull, &failedNull)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get stats since %s: %w", since.Format("2006-01-02"), err)
	}
	return int(sentNull.Int64), int(failedNull.Int64), nil
}

// MarkMessageProcessed records a digest email id. Recording the same id
// twice is not an error.
func (s *Store) MarkMessageProcessed(messageID string) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO processed_messages (message_id) VALUES (?)`, messageID)
	if err != nil {
		return fmt.Errorf("failed to mark message processed: %w", err)
	}
	return nil
}

func (s *Store) IsMessageProcessed(messageID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM processed_messages WHERE message_id = ?`, messageID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query processed message: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Close() error { return s.db.Close() }

// nullInt scans SUM() results, which are NULL on an empty table.
type nullInt struct{ p *int }

func (n nullInt) Scan(v any) error {
	var ni sql.NullInt64
	if err := ni.Scan(v); err != nil {
		return err
	}
	*n.p = int(ni.Int64)
	return nil
}
