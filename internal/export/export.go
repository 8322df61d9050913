// Package export renders stored listings as JSON or CSV for downstream
// consumers.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/okhmil/pricetrack/internal/crawler"
)

// Format identifies an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// listingJSON is the stable wire shape of one exported listing.
type listingJSON struct {
	URL        string   `json:"url"`
	Title      string   `json:"title,omitempty"`
	Snippet    string   `json:"snippet,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
	Price      *float64 `json:"price"`
	Currency   string   `json:"currency,omitempty"`
	DatePosted string   `json:"date_posted,omitempty"`
	ScrapedAt  string   `json:"scraped_at"`
	FirstSeen  string   `json:"first_seen"`
	Site       string   `json:"site"`
	Category   string   `json:"category,omitempty"`
	IsActive   bool     `json:"is_active"`
}

// Write renders listings to w in the requested format.
func Write(w io.Writer, format Format, listings []crawler.Listing) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, listings)
	case FormatCSV:
		return WriteCSV(w, listings)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteJSON renders listings as an indented JSON array.
func WriteJSON(w io.Writer, listings []crawler.Listing) error {
	out := make([]listingJSON, 0, len(listings))
	for _, l := range listings {
		out = append(out, toJSON(l))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(out)
}

// WriteCSV renders listings as CSV with a header row.
func WriteCSV(w io.Writer, listings []crawler.Listing) error {
	cw := csv.NewWriter(w)

	header := []string{"url", "title", "snippet", "image_url", "price", "currency",
		"date_posted", "scraped_at", "first_seen", "site", "category", "is_active"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, l := range listings {
		price := ""
		if l.Price != nil {
			price = strconv.FormatFloat(*l.Price, 'f', -1, 64)
		}
		datePosted := ""
		if l.DatePosted != nil {
			datePosted = l.DatePosted.Format(time.RFC3339)
		}

		row := []string{
			l.URL,
			l.Title,
			l.Snippet,
			l.ImageURL,
			price,
			l.Currency,
			datePosted,
			l.ScrapedAt.Format(time.RFC3339),
			l.FirstSeen.Format(time.RFC3339),
			l.Site,
			l.Category,
			strconv.FormatBool(l.IsActive),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", l.URL, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func toJSON(l crawler.Listing) listingJSON {
	j := listingJSON{
		URL:       l.URL,
		Title:     l.Title,
		Snippet:   l.Snippet,
		ImageURL:  l.ImageURL,
		Price:     l.Price,
		Currency:  l.Currency,
		ScrapedAt: l.ScrapedAt.Format(time.RFC3339),
		FirstSeen: l.FirstSeen.Format(time.RFC3339),
		Site:      l.Site,
		Category:  l.Category,
		IsActive:  l.IsActive,
	}
	if l.DatePosted != nil {
		j.DatePosted = l.DatePosted.Format(time.RFC3339)
	}
	return j
}
