// Package crawler walks paginated listing pages, extracts product records,
// and feeds them to the store under per-run session accounting.
package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/okhmil/pricetrack/internal/config"
	"github.com/okhmil/pricetrack/internal/extract"
)

// Crawler runs one harvest of one source: sequential page walk, bounded
// concurrent item processing, versioned storage.
type Crawler struct {
	cfg      *config.SourceConfig
	fetcher  *Fetcher
	store    Store
	sessions SessionStore
	progress Progress

	extractOpts extract.Options

	// Guards stats.Errors against concurrent item workers.
	errMu sync.Mutex
}

// New assembles a crawler from its collaborators. progress may be nil.
func New(cfg *config.SourceConfig, fetcher *Fetcher, store Store, sessions SessionStore, progress Progress) (*Crawler, error) {
	base, err := url.Parse(cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL %q: %w", cfg.StartURL, err)
	}
	if progress == nil {
		progress = NopProgress{}
	}

	return &Crawler{
		cfg:      cfg,
		fetcher:  fetcher,
		store:    store,
		sessions: sessions,
		progress: progress,
		extractOpts: extract.Options{
			BaseURL: base,
			Selectors: extract.Selectors{
				Title:       cfg.Selectors.Title,
				Price:       cfg.Selectors.Price,
				Description: cfg.Selectors.Description,
				Image:       cfg.Selectors.Image,
			},
			DefaultCurrency: cfg.Currency,
		},
	}, nil
}

// Run executes one crawl session. The session row is finalized exactly once:
// completed after a natural walk termination, failed on abort. A robots.txt
// denial fails the session without counting as an error.
func (c *Crawler) Run(ctx context.Context) (*CrawlStats, error) {
	stats := &CrawlStats{
		SessionID: c.cfg.SessionID,
		StartTime: time.Now().UTC(),
	}

	if err := c.sessions.StartSession(c.cfg.SessionID, c.cfg.Site); err != nil {
		return stats, fmt.Errorf("failed to start session: %w", err)
	}

	status := SessionFailed
	defer func() {
		if err := c.sessions.Finalize(c.cfg.SessionID, status); err != nil {
			c.progress.ErrorOccurred("session", c.cfg.SessionID, err)
		}
		stats.Duration = time.Since(stats.StartTime)
	}()

	seenURLs, err := c.walk(ctx, stats)
	if err != nil {
		return stats, err
	}
	status = SessionCompleted

	// A full, clean walk is the only safe witness for disappearance.
	if c.cfg.MaxPages == 0 && stats.Errors == 0 {
		if _, err := c.store.MarkInactiveExcept(c.cfg.Site, seenURLs); err != nil {
			c.progress.ErrorOccurred("store", c.cfg.Site, err)
		}
	}

	return stats, nil
}

// walk visits listing pages sequentially until a termination rule fires.
// It returns the distinct item URLs observed across all pages.
func (c *Crawler) walk(ctx context.Context, stats *CrawlStats) ([]string, error) {
	pageURL := c.cfg.StartURL
	visited := make(map[string]bool)
	itemsSeen := make(map[string]bool)
	var seenURLs []string

	for pageNum := 1; pageURL != ""; pageNum++ {
		if err := ctx.Err(); err != nil {
			return seenURLs, err
		}
		if pageNum > c.cfg.PageCap {
			break
		}
		if c.cfg.MaxPages > 0 && pageNum > c.cfg.MaxPages {
			break
		}
		if visited[pageURL] {
			break
		}
		visited[pageURL] = true

		body, err := c.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if IsDisallowed(err) {
				c.progress.ErrorOccurred("robots", pageURL, err)
				return seenURLs, err
			}
			// A stop request aborts the walk without counting as an error.
			if ctx.Err() != nil {
				return seenURLs, ctx.Err()
			}
			c.recordError("fetch", pageURL, err, stats)
			return seenURLs, err
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			c.recordError("parse", pageURL, err, stats)
			return seenURLs, err
		}

		if pageNum == 1 && DetectJSWall(doc) {
			err := fmt.Errorf("page %s renders client-side, no markup to extract", pageURL)
			c.recordError("parse", pageURL, err, stats)
			return seenURLs, err
		}

		base, err := url.Parse(pageURL)
		if err != nil {
			c.recordError("parse", pageURL, err, stats)
			return seenURLs, err
		}

		var records []*Record
		links := DiscoverPage(doc, base, c.cfg.Selectors)
		if c.cfg.FollowItems {
			records = c.fetchItems(ctx, links.Items, itemsSeen, stats)
		} else {
			records = c.extractCards(doc, base, itemsSeen)
		}

		newCount := 0
		for _, rec := range records {
			if rec.URL != "" {
				seenURLs = append(seenURLs, rec.URL)
			}
			isNew := c.storeRecord(rec, stats)
			if isNew {
				newCount++
			}
		}

		stats.Pages++
		stats.Items += len(records)
		stats.NewListings += newCount
		if err := c.sessions.RecordPage(c.cfg.SessionID, len(records)); err != nil {
			c.progress.ErrorOccurred("session", c.cfg.SessionID, err)
		}
		c.progress.PageFetched(pageURL, len(records))

		// A page contributing nothing new means the walk is circling.
		if len(records) == 0 && pageNum > 1 {
			break
		}

		if links.Next == "" || links.Next == pageURL {
			break
		}
		pageURL = links.Next
	}

	return seenURLs, nil
}

// extractCards pulls records straight out of the listing page fragments.
func (c *Crawler) extractCards(doc *goquery.Document, base *url.URL, itemsSeen map[string]bool) []*Record {
	opts := c.extractOpts
	opts.BaseURL = base

	var records []*Record
	now := time.Now().UTC()
	for _, card := range CardSelections(doc, c.cfg.Selectors) {
		rec := toRecord(extract.FromSelection(card, opts), now)
		if !rec.Actionable() {
			continue
		}
		if rec.URL != "" {
			if itemsSeen[rec.URL] {
				continue
			}
			itemsSeen[rec.URL] = true
		}
		records = append(records, rec)
	}

	return records
}

// fetchItems downloads and extracts each discovered item page with a bounded
// worker pool. Results keep the discovery order regardless of completion
// order; failed items are skipped after counting the error. Items cut off by
// a stop request do not count as errors.
func (c *Crawler) fetchItems(ctx context.Context, itemURLs []string, itemsSeen map[string]bool, stats *CrawlStats) []*Record {
	var fresh []string
	for _, u := range itemURLs {
		if !itemsSeen[u] {
			itemsSeen[u] = true
			fresh = append(fresh, u)
		}
	}

	results := make([]*Record, len(fresh))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	for i, itemURL := range fresh {
		i, itemURL := i, itemURL
		g.Go(func() error {
			body, err := c.fetcher.Fetch(gctx, itemURL)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.recordError("fetch", itemURL, err, stats)
				return nil
			}
			doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
			if err != nil {
				c.recordError("parse", itemURL, err, stats)
				return nil
			}
			results[i] = toRecord(extract.FromDocument(doc, itemURL, c.extractOpts), time.Now().UTC())
			return nil
		})
	}
	_ = g.Wait()

	records := make([]*Record, 0, len(results))
	for _, rec := range results {
		if rec != nil && rec.Actionable() {
			records = append(records, rec)
		}
	}

	return records
}

// storeRecord writes one record to both the current table and the version
// log. Returns whether a new listing row was created.
func (c *Crawler) storeRecord(rec *Record, stats *CrawlStats) bool {
	if rec.URL == "" {
		return false
	}

	isNew, _, err := c.store.Upsert(rec, c.cfg.Site, c.cfg.Category)
	if err != nil {
		c.recordError("store", rec.URL, err, stats)
		return false
	}

	if _, err := c.store.UpsertVersioned(rec, c.cfg.Site, c.cfg.Category, c.cfg.SessionID); err != nil {
		c.recordError("store", rec.URL, err, stats)
	}

	c.progress.ItemExtracted(rec)
	return isNew
}

func (c *Crawler) recordError(stage, url string, err error, stats *CrawlStats) {
	c.errMu.Lock()
	stats.Errors++
	c.errMu.Unlock()
	c.progress.ErrorOccurred(stage, url, err)
	if serr := c.sessions.RecordError(c.cfg.SessionID); serr != nil {
		c.progress.ErrorOccurred("session", c.cfg.SessionID, serr)
	}
}

func toRecord(r *extract.Result, now time.Time) *Record {
	return &Record{
		URL:        r.URL,
		Title:      r.Title,
		Snippet:    r.Snippet,
		ImageURL:   r.ImageURL,
		Price:      r.Price,
		Currency:   r.Currency,
		DatePosted: r.DatePosted,
		ScrapedAt:  now,
	}
}
