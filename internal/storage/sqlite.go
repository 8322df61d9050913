// Package storage provides data persistence for the scraper. It implements
// the versioned listing store and session accounting on SQLite: current
// listings keyed by URL, an append-only price change log, a content-addressed
// version log, and per-run scrape sessions.
package storage

import (
	"crypto/sha256"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/okhmil/pricetrack/internal/crawler"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// SQLiteStore implements crawler.Store and crawler.SessionStore using SQLite
type SQLiteStore struct {
	db *sql.DB

	// Serializes upserts per listing URL so concurrent workers never
	// interleave the read-compare-append sequence for the same key.
	urlLocks sync.Map // url -> *sync.Mutex
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := &SQLiteStore{db: db}

	if err := store.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// InitSchema creates the database schema
func (s *SQLiteStore) InitSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 30000",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Fingerprint computes the content fingerprint over the fields that define a
// meaningfully distinct observation: url, display name, and price. Field
// order is fixed, so identical inputs always produce identical output.
func Fingerprint(url, title string, price *float64) string {
	p := "null"
	if price != nil {
		p = strconv.FormatFloat(*price, 'f', -1, 64)
	}
	h := sha256.Sum256([]byte(url + "\x00" + title + "\x00" + p))
	return fmt.Sprintf("%x", h)
}

// lockURL acquires the per-URL write lock
func (s *SQLiteStore) lockURL(url string) *sync.Mutex {
	mu, _ := s.urlLocks.LoadOrStore(url, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m
}

// Upsert inserts or updates a listing, appending a price history row when
// the observed price differs from the stored one. The listing update and the
// history append commit in one transaction: both succeed or neither does.
func (s *SQLiteStore) Upsert(rec *crawler.Record, site, category string) (bool, int64, error) {
	if rec == nil || rec.URL == "" {
		return false, 0, fmt.Errorf("record has no URL")
	}

	mu := s.lockURL(rec.URL)
	defer mu.Unlock()

	now := rec.ScrapedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	var oldPrice sql.NullFloat64
	err = tx.QueryRow("SELECT id, price FROM listings WHERE url = ?", rec.URL).Scan(&id, &oldPrice)
	isNew := err == sql.ErrNoRows
	if err != nil && !isNew {
		return false, 0, fmt.Errorf("failed to query listing %s: %w", rec.URL, err)
	}

	if isNew {
		result, err := tx.Exec(`
			INSERT INTO listings (url, title, snippet, image_url, price, currency,
				date_posted, scraped_at, first_seen, site, category, is_active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		`, rec.URL, nullString(rec.Title), nullString(rec.Snippet), nullString(rec.ImageURL),
			nullFloat(rec.Price), nullString(rec.Currency), nullTime(rec.DatePosted),
			now, now, site, nullString(category))
		if err != nil {
			return false, 0, fmt.Errorf("failed to insert listing %s: %w", rec.URL, err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return false, 0, fmt.Errorf("failed to get listing id for %s: %w", rec.URL, err)
		}
	} else {
		// Per-field last-write-wins: COALESCE keeps the stored value when
		// the new observation is missing a field.
		_, err = tx.Exec(`
			UPDATE listings SET
				title = COALESCE(?, title),
				snippet = COALESCE(?, snippet),
				image_url = COALESCE(?, image_url),
				price = COALESCE(?, price),
				currency = COALESCE(?, currency),
				date_posted = COALESCE(?, date_posted),
				scraped_at = ?,
				site = ?,
				category = COALESCE(?, category),
				is_active = 1
			WHERE url = ?
		`, nullString(rec.Title), nullString(rec.Snippet), nullString(rec.ImageURL),
			nullFloat(rec.Price), nullString(rec.Currency), nullTime(rec.DatePosted),
			now, site, nullString(category), rec.URL)
		if err != nil {
			return false, 0, fmt.Errorf("failed to update listing %s: %w", rec.URL, err)
		}
	}

	// Append a price history row on any observed change, including the
	// first known price. A transition to unknown appends nothing.
	if rec.Price != nil && (!oldPrice.Valid || oldPrice.Float64 != *rec.Price) {
		_, err = tx.Exec(`
			INSERT INTO price_history (listing_id, url, price, currency, recorded_at)
			VALUES (?, ?, ?, ?, ?)
		`, id, rec.URL, *rec.Price, nullString(rec.Currency), now)
		if err != nil {
			return false, 0, fmt.Errorf("failed to append price history for %s: %w", rec.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("failed to commit upsert for %s: %w", rec.URL, err)
	}

	return isNew, id, nil
}

// UpsertVersioned appends a content-addressed version row. The UNIQUE
// (url, fingerprint) constraint makes re-observation of an unchanged record
// a no-op across all sessions.
func (s *SQLiteStore) UpsertVersioned(rec *crawler.Record, site, category, sessionID string) (bool, error) {
	if rec == nil || rec.URL == "" {
		return false, fmt.Errorf("record has no URL")
	}

	mu := s.lockURL(rec.URL)
	defer mu.Unlock()

	now := rec.ScrapedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	fp := Fingerprint(rec.URL, rec.Title, rec.Price)

	result, err := s.db.Exec(`
		INSERT OR IGNORE INTO listing_versions
			(url, title, price, currency, image_url, site, category,
			 session_id, fingerprint, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.URL, nullString(rec.Title), nullFloat(rec.Price), nullString(rec.Currency),
		nullString(rec.ImageURL), site, nullString(category), sessionID, fp, now)
	if err != nil {
		return false, fmt.Errorf("failed to insert version for %s: %w", rec.URL, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check version insert for %s: %w", rec.URL, err)
	}

	return affected == 0, nil
}

// CurrentState returns the latest row per URL matching the filter,
// most recently scraped first.
func (s *SQLiteStore) CurrentState(f crawler.ListingFilter) ([]crawler.Listing, error) {
	query := `
		SELECT id, url, title, snippet, image_url, price, currency,
		       date_posted, scraped_at, first_seen, site, category, is_active
		FROM listings WHERE 1=1`
	var args []any

	if !f.IncludeInactive {
		query += " AND is_active = 1"
	}
	if f.Site != "" {
		query += " AND site = ?"
		args = append(args, f.Site)
	}
	if f.Category != "" {
		query += " AND category = ?"
		args = append(args, f.Category)
	}

	query += " ORDER BY scraped_at DESC, id DESC"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var listings []crawler.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}

	return listings, rows.Err()
}

// PriceHistory returns price changes for a URL, most recent first.
func (s *SQLiteStore) PriceHistory(url string, limit int) ([]crawler.PriceEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT id, listing_id, url, price, currency, recorded_at
		FROM price_history
		WHERE url = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`, url, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []crawler.PriceEntry
	for rows.Next() {
		var e crawler.PriceEntry
		var listingID sql.NullInt64
		var price sql.NullFloat64
		var currency sql.NullString
		if err := rows.Scan(&e.ID, &listingID, &e.URL, &price, &currency, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price history row: %w", err)
		}
		e.ListingID = listingID.Int64
		if price.Valid {
			p := price.Float64
			e.Price = &p
		}
		e.Currency = currency.String
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Stats summarizes stored active listings, optionally filtered by site.
func (s *SQLiteStore) Stats(site string) (*crawler.StoreStats, error) {
	query := `
		SELECT COUNT(*), COUNT(DISTINCT url), AVG(price)
		FROM listings WHERE is_active = 1`
	var args []any
	if site != "" {
		query += " AND site = ?"
		args = append(args, site)
	}

	var stats crawler.StoreStats
	var avg sql.NullFloat64
	err := s.db.QueryRow(query, args...).Scan(&stats.TotalListings, &stats.UniqueURLs, &avg)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	if avg.Valid {
		a := avg.Float64
		stats.AveragePrice = &a
	}

	return &stats, nil
}

// seenURLChunk bounds the bind variables per statement when staging the seen
// set, well under SQLite's variable limit.
const seenURLChunk = 500

// MarkInactiveExcept soft-deletes listings of a site that a completed full
// re-crawl did not discover. Returns the number of rows deactivated. The seen
// set is staged into a temp table so crawls with tens of thousands of URLs
// never exceed the bind variable limit of a single statement.
func (s *SQLiteStore) MarkInactiveExcept(site string, seenURLs []string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`CREATE TEMP TABLE IF NOT EXISTS seen_urls (url TEXT PRIMARY KEY)`); err != nil {
		return 0, fmt.Errorf("failed to create seen-URL staging table: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM temp.seen_urls`); err != nil {
		return 0, fmt.Errorf("failed to clear seen-URL staging table: %w", err)
	}

	for start := 0; start < len(seenURLs); start += seenURLChunk {
		end := start + seenURLChunk
		if end > len(seenURLs) {
			end = len(seenURLs)
		}
		chunk := seenURLs[start:end]

		placeholders := strings.Repeat("(?),", len(chunk))
		args := make([]any, len(chunk))
		for i, u := range chunk {
			args[i] = u
		}
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO temp.seen_urls (url) VALUES "+placeholders[:len(placeholders)-1],
			args...); err != nil {
			return 0, fmt.Errorf("failed to stage seen URLs: %w", err)
		}
	}

	result, err := tx.Exec(`
		UPDATE listings SET is_active = 0
		WHERE site = ? AND is_active = 1
		  AND url NOT IN (SELECT url FROM temp.seen_urls)
	`, site)
	if err != nil {
		return 0, fmt.Errorf("failed to mark inactive listings: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count inactive listings: %w", err)
	}

	if _, err := tx.Exec(`DROP TABLE temp.seen_urls`); err != nil {
		return 0, fmt.Errorf("failed to drop seen-URL staging table: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit inactive marking: %w", err)
	}

	return affected, nil
}

// scanListing reads one listings row
func scanListing(rows *sql.Rows) (*crawler.Listing, error) {
	var l crawler.Listing
	var title, snippet, imageURL, currency, category sql.NullString
	var price sql.NullFloat64
	var datePosted sql.NullTime
	var isActive int

	err := rows.Scan(&l.ID, &l.URL, &title, &snippet, &imageURL, &price, &currency,
		&datePosted, &l.ScrapedAt, &l.FirstSeen, &l.Site, &category, &isActive)
	if err != nil {
		return nil, fmt.Errorf("failed to scan listing row: %w", err)
	}

	l.Title = title.String
	l.Snippet = snippet.String
	l.ImageURL = imageURL.String
	l.Currency = currency.String
	l.Category = category.String
	if price.Valid {
		p := price.Float64
		l.Price = &p
	}
	if datePosted.Valid {
		d := datePosted.Time
		l.DatePosted = &d
	}
	l.IsActive = isActive != 0

	return &l, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
