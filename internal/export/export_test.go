package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/okhmil/pricetrack/internal/crawler"
)

func sampleListings() []crawler.Listing {
	price := 42.50
	scraped := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	return []crawler.Listing{
		{
			ID:        1,
			URL:       "https://fora.ua/p/milk",
			Title:     "Молоко 2,5%",
			Price:     &price,
			Currency:  "UAH",
			ScrapedAt: scraped,
			FirstSeen: scraped,
			Site:      "fora",
			Category:  "dairy",
			IsActive:  true,
		},
		{
			ID:        2,
			URL:       "https://fora.ua/p/bread",
			Title:     "Хліб, \"особливий\"",
			ScrapedAt: scraped,
			FirstSeen: scraped,
			Site:      "fora",
			IsActive:  false,
		},
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleListings()); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(out))
	}

	if out[0]["url"] != "https://fora.ua/p/milk" {
		t.Errorf("Unexpected url: %v", out[0]["url"])
	}
	if out[0]["price"] != 42.50 {
		t.Errorf("Expected price 42.5, got %v", out[0]["price"])
	}
	if out[1]["price"] != nil {
		t.Errorf("Expected null price for unresolved listing, got %v", out[1]["price"])
	}
	if out[1]["is_active"] != false {
		t.Errorf("Expected inactive flag preserved, got %v", out[1]["is_active"])
	}
}

func TestWriteJSONEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, nil); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("Expected empty array, got %q", buf.String())
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleListings()); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header plus 2 rows, got %d", len(rows))
	}

	if rows[0][0] != "url" || rows[0][4] != "price" {
		t.Errorf("Unexpected header: %v", rows[0])
	}
	if rows[1][4] != "42.5" {
		t.Errorf("Expected price column 42.5, got %q", rows[1][4])
	}
	if rows[2][4] != "" {
		t.Errorf("Expected empty price column for unresolved listing, got %q", rows[2][4])
	}
	// Embedded quotes must round-trip.
	if rows[2][1] != `Хліб, "особливий"` {
		t.Errorf("Expected quoted title to round-trip, got %q", rows[2][1])
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, Format("xml"), nil); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestWriteDispatch(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, sampleListings()); err != nil {
		t.Fatalf("Write csv failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "url,") {
		t.Errorf("Expected CSV output, got %q", buf.String()[:20])
	}
}
