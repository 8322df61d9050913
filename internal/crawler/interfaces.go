package crawler

// Store persists extracted records. It is the only component permitted to
// mutate listings, price history, and version rows. Implementations must
// serialize writes per URL while allowing concurrent reads.
type Store interface {
	// Upsert inserts the record if its URL is unseen, otherwise updates the
	// existing listing field-by-field (a newly unobservable field does not
	// erase a previously known value). A price change appends exactly one
	// price history row inside the same transaction.
	Upsert(rec *Record, site, category string) (isNew bool, id int64, err error)

	// UpsertVersioned appends a content-addressed version row unless the
	// record's fingerprint has already been recorded for its URL.
	// Returns true when the version was already known (no-op).
	UpsertVersioned(rec *Record, site, category, sessionID string) (isDuplicate bool, err error)

	// CurrentState returns the latest row per URL matching the filter,
	// most recently scraped first.
	CurrentState(f ListingFilter) ([]Listing, error)

	// PriceHistory returns price changes for a URL, most recent first.
	PriceHistory(url string, limit int) ([]PriceEntry, error)

	// Stats summarizes stored listings, optionally filtered by site.
	Stats(site string) (*StoreStats, error)

	// MarkInactiveExcept soft-deletes listings of a site whose URL was not
	// discovered by a completed full re-crawl. Returns the number of rows
	// deactivated.
	MarkInactiveExcept(site string, seenURLs []string) (int64, error)

	Close() error
}

// SessionStore records per-run crawl accounting. Writes for one session id
// are serialized by the implementation.
type SessionStore interface {
	// StartSession creates the session row. Starting an already-running
	// session id is a no-op, supporting resumed runs.
	StartSession(id, site string) error

	// RecordPage increments the page counter and adds itemCount to the
	// product counter.
	RecordPage(id string, itemCount int) error

	// RecordError increments the error counter.
	RecordError(id string) error

	// Finalize sets end_time and moves status out of running. The first
	// call wins; later calls are no-ops.
	Finalize(id, status string) error

	// GetSession returns the accounting row for a session id.
	GetSession(id string) (*Session, error)

	// Quality reports field completeness over the version rows one session
	// recorded.
	Quality(id string) (*QualityReport, error)
}

// Progress is the sole channel through which the pipeline reports to
// logging/monitoring collaborators.
type Progress interface {
	PageFetched(pageURL string, itemCount int)
	ItemExtracted(rec *Record)
	ErrorOccurred(stage, url string, err error)
}
