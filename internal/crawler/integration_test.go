package crawler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/okhmil/pricetrack/internal/config"
	"github.com/okhmil/pricetrack/internal/crawler"
	"github.com/okhmil/pricetrack/internal/storage"
)

// Full pipeline against the real SQLite store: two runs over the same
// catalog with one price change in between.
func TestCrawlEndToEnd(t *testing.T) {
	priceA := 10.00
	mux := http.NewServeMux()
	mux.HandleFunc("/cat", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<div class="product-card"><a href="/p/a"><h3>Product A</h3></a><span class="price">%.2f грн</span></div>`, priceA)
		fmt.Fprint(w, `<div class="product-card"><a href="/p/b"><h3>Product B</h3></a><span class="price">20.00 грн</span></div>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "crawl.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	run := func(sessionID string) {
		cfg := config.DefaultConfig()
		cfg.Site = "fora"
		cfg.Category = "dairy"
		cfg.StartURL = server.URL + "/cat"
		cfg.SessionID = sessionID
		cfg.RequestDelay = 5 * time.Millisecond
		cfg.RetryMax = 0
		cfg.Selectors.Cards = ".product-card"

		fetcher := crawler.NewFetcher(cfg, crawler.NewRateLimiter(cfg.RequestDelay), nil)
		c, err := crawler.New(cfg, fetcher, store, store, nil)
		if err != nil {
			t.Fatalf("Failed to build crawler: %v", err)
		}
		if _, err := c.Run(context.Background()); err != nil {
			t.Fatalf("Run %s failed: %v", sessionID, err)
		}
	}

	run("it-1")
	priceA = 12.00
	run("it-2")

	history, err := store.PriceHistory(server.URL+"/p/a", 10)
	if err != nil {
		t.Fatalf("PriceHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("Expected 2 price history rows for A, got %d", len(history))
	}
	if len(history) == 2 {
		if history[0].Price == nil || *history[0].Price != 12.00 {
			t.Errorf("Expected latest price 12.00 first, got %v", history[0].Price)
		}
	}

	history, err = store.PriceHistory(server.URL+"/p/b", 10)
	if err != nil {
		t.Fatalf("PriceHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("Expected 1 price history row for unchanged B, got %d", len(history))
	}

	listings, err := store.CurrentState(crawler.ListingFilter{Site: "fora"})
	if err != nil {
		t.Fatalf("CurrentState failed: %v", err)
	}
	if len(listings) != 2 {
		t.Errorf("Expected 2 listings, got %d", len(listings))
	}

	for _, id := range []string{"it-1", "it-2"} {
		sess, err := store.GetSession(id)
		if err != nil {
			t.Fatalf("GetSession %s failed: %v", id, err)
		}
		if sess.Status != crawler.SessionCompleted {
			t.Errorf("Expected session %s completed, got %s", id, sess.Status)
		}
		if sess.PagesScraped != 1 || sess.ProductsFound != 2 {
			t.Errorf("Unexpected accounting for %s: pages=%d products=%d",
				id, sess.PagesScraped, sess.ProductsFound)
		}
	}
}
