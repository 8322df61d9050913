package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/okhmil/pricetrack/internal/crawler"
)

// StartSession creates the accounting row for a crawl run. Re-starting an
// existing session id is a no-op so resumed runs keep their counters.
func (s *SQLiteStore) StartSession(id, site string) error {
	if id == "" {
		return fmt.Errorf("session id is empty")
	}

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO scrape_sessions (session_id, site, start_time, status)
		VALUES (?, ?, ?, ?)
	`, id, site, time.Now().UTC(), crawler.SessionRunning)
	if err != nil {
		return fmt.Errorf("failed to start session %s: %w", id, err)
	}

	return nil
}

// RecordPage increments the page counter and adds itemCount to the product
// counter. Counters only move while the session is running; a finalized
// session's accounting is immutable.
func (s *SQLiteStore) RecordPage(id string, itemCount int) error {
	_, err := s.db.Exec(`
		UPDATE scrape_sessions
		SET pages_scraped = pages_scraped + 1,
		    products_found = products_found + ?
		WHERE session_id = ? AND status = ?
	`, itemCount, id, crawler.SessionRunning)
	if err != nil {
		return fmt.Errorf("failed to record page for session %s: %w", id, err)
	}

	return nil
}

// RecordError increments the error counter of a running session.
func (s *SQLiteStore) RecordError(id string) error {
	_, err := s.db.Exec(`
		UPDATE scrape_sessions
		SET errors_count = errors_count + 1
		WHERE session_id = ? AND status = ?
	`, id, crawler.SessionRunning)
	if err != nil {
		return fmt.Errorf("failed to record error for session %s: %w", id, err)
	}

	return nil
}

// Finalize sets end_time and the terminal status. The WHERE clause restricts
// the update to running sessions, so the first call wins and later calls
// (or calls for unknown ids) change nothing.
func (s *SQLiteStore) Finalize(id, status string) error {
	if status != crawler.SessionCompleted && status != crawler.SessionFailed {
		return fmt.Errorf("invalid terminal status %q for session %s", status, id)
	}

	_, err := s.db.Exec(`
		UPDATE scrape_sessions
		SET end_time = ?, status = ?
		WHERE session_id = ? AND status = ?
	`, time.Now().UTC(), status, id, crawler.SessionRunning)
	if err != nil {
		return fmt.Errorf("failed to finalize session %s: %w", id, err)
	}

	return nil
}

// Quality reports field completeness over the version rows one session
// recorded. A session that captured nothing yields all-zero counts.
func (s *SQLiteStore) Quality(id string) (*crawler.QualityReport, error) {
	q := &crawler.QualityReport{SessionID: id}

	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(price),
		       COALESCE(SUM(title IS NOT NULL AND title != ''), 0),
		       COALESCE(SUM(image_url IS NOT NULL AND image_url != ''), 0)
		FROM listing_versions
		WHERE session_id = ?
	`, id).Scan(&q.Records, &q.WithPrice, &q.WithTitle, &q.WithImage)
	if err != nil {
		return nil, fmt.Errorf("failed to query quality for session %s: %w", id, err)
	}

	return q, nil
}

// GetSession returns the accounting row for a session id.
func (s *SQLiteStore) GetSession(id string) (*crawler.Session, error) {
	var sess crawler.Session
	var endTime sql.NullTime

	err := s.db.QueryRow(`
		SELECT session_id, site, start_time, end_time,
		       pages_scraped, products_found, errors_count, status
		FROM scrape_sessions
		WHERE session_id = ?
	`, id).Scan(&sess.ID, &sess.Site, &sess.StartTime, &endTime,
		&sess.PagesScraped, &sess.ProductsFound, &sess.ErrorsCount, &sess.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to query session %s: %w", id, err)
	}

	if endTime.Valid {
		t := endTime.Time
		sess.EndTime = &t
	}

	return &sess, nil
}
