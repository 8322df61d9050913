package crawler

import "time"

// Record is the best-effort result of extracting one listing from markup.
// Any field except URL may be empty; a nil Price means no price could be
// resolved, which is a normal partial result, not an error.
type Record struct {
	URL        string     // Absolute item URL (unique listing key)
	Title      string     // Product title
	Snippet    string     // Short description
	ImageURL   string     // Absolute image URL
	Price      *float64   // Observed price, nil when unresolved
	Currency   string     // Short currency code, empty when unresolved
	DatePosted *time.Time // Source-reported posting date, nil when absent
	ScrapedAt  time.Time  // Extraction timestamp (UTC)
}

// Actionable reports whether the record carries enough identity to store.
// A record with neither URL nor title is dropped before reaching the store.
func (r *Record) Actionable() bool {
	return r != nil && (r.URL != "" || r.Title != "")
}

// Listing is the latest known state of one product at one URL.
type Listing struct {
	ID         int64
	URL        string
	Title      string
	Snippet    string
	ImageURL   string
	Price      *float64
	Currency   string
	DatePosted *time.Time
	ScrapedAt  time.Time
	FirstSeen  time.Time
	Site       string
	Category   string
	IsActive   bool
}

// PriceEntry is one immutable price change record for a listing URL.
type PriceEntry struct {
	ID         int64
	ListingID  int64
	URL        string
	Price      *float64
	Currency   string
	RecordedAt time.Time
}

// ListingFilter narrows CurrentState queries. Zero values match everything.
type ListingFilter struct {
	Site            string
	Category        string
	Limit           int
	IncludeInactive bool
}

// StoreStats summarizes the stored listings for one site (or all sites).
type StoreStats struct {
	TotalListings int
	UniqueURLs    int
	AveragePrice  *float64
}

// Session status values. Transitions only run forward:
// running -> completed or running -> failed.
const (
	SessionRunning   = "running"
	SessionCompleted = "completed"
	SessionFailed    = "failed"
)

// Session is the accounting row for one crawl invocation against one source.
type Session struct {
	ID            string
	Site          string
	StartTime     time.Time
	EndTime       *time.Time
	PagesScraped  int
	ProductsFound int
	ErrorsCount   int
	Status        string
}

// QualityReport summarizes how complete the records captured by one session
// are: of everything recorded, how many carried a resolved price, a title,
// and an image.
type QualityReport struct {
	SessionID string
	Records   int
	WithPrice int
	WithTitle int
	WithImage int
}

// CrawlStats reports the outcome of one crawl run.
type CrawlStats struct {
	SessionID   string
	Pages       int
	Items       int
	NewListings int
	Errors      int
	StartTime   time.Time
	Duration    time.Duration
}
