package storage

import (
	"testing"

	"github.com/okhmil/pricetrack/internal/crawler"
)

func TestSessionLifecycle(t *testing.T) {
	store := setupTestStore(t)

	if err := store.StartSession("run-1", "fora"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	sess, err := store.GetSession("run-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess.Status != crawler.SessionRunning {
		t.Errorf("Expected status running, got %s", sess.Status)
	}
	if sess.EndTime != nil {
		t.Error("Expected no end time for a running session")
	}

	if err := store.RecordPage("run-1", 24); err != nil {
		t.Fatalf("RecordPage failed: %v", err)
	}
	if err := store.RecordPage("run-1", 18); err != nil {
		t.Fatalf("RecordPage failed: %v", err)
	}
	if err := store.RecordError("run-1"); err != nil {
		t.Fatalf("RecordError failed: %v", err)
	}

	if err := store.Finalize("run-1", crawler.SessionCompleted); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	sess, err = store.GetSession("run-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess.PagesScraped != 2 {
		t.Errorf("Expected 2 pages scraped, got %d", sess.PagesScraped)
	}
	if sess.ProductsFound != 42 {
		t.Errorf("Expected 42 products found, got %d", sess.ProductsFound)
	}
	if sess.ErrorsCount != 1 {
		t.Errorf("Expected 1 error, got %d", sess.ErrorsCount)
	}
	if sess.Status != crawler.SessionCompleted {
		t.Errorf("Expected status completed, got %s", sess.Status)
	}
	if sess.EndTime == nil {
		t.Error("Expected end time to be set after finalize")
	}
}

func TestStartSessionIdempotent(t *testing.T) {
	store := setupTestStore(t)

	if err := store.StartSession("run-2", "fora"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := store.RecordPage("run-2", 5); err != nil {
		t.Fatalf("RecordPage failed: %v", err)
	}

	// Restarting an existing session keeps its counters.
	if err := store.StartSession("run-2", "fora"); err != nil {
		t.Fatalf("Second StartSession failed: %v", err)
	}

	sess, err := store.GetSession("run-2")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess.PagesScraped != 1 || sess.ProductsFound != 5 {
		t.Errorf("Expected counters preserved across restart, got pages=%d products=%d",
			sess.PagesScraped, sess.ProductsFound)
	}
}

func TestFinalizeFirstCallWins(t *testing.T) {
	store := setupTestStore(t)

	if err := store.StartSession("run-3", "novus"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := store.Finalize("run-3", crawler.SessionFailed); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	// A later finalize with a different status is a no-op.
	if err := store.Finalize("run-3", crawler.SessionCompleted); err != nil {
		t.Fatalf("Second Finalize failed: %v", err)
	}

	sess, err := store.GetSession("run-3")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess.Status != crawler.SessionFailed {
		t.Errorf("Expected first finalize to win, got status %s", sess.Status)
	}
}

func TestFinalizeRejectsInvalidStatus(t *testing.T) {
	store := setupTestStore(t)

	if err := store.StartSession("run-4", "fora"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := store.Finalize("run-4", "paused"); err == nil {
		t.Error("Expected error for non-terminal status")
	}
}

func TestCountersFrozenAfterFinalize(t *testing.T) {
	store := setupTestStore(t)

	if err := store.StartSession("run-5", "fora"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	if err := store.RecordPage("run-5", 7); err != nil {
		t.Fatalf("RecordPage failed: %v", err)
	}
	if err := store.Finalize("run-5", crawler.SessionCompleted); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	// Late writes against a finalized session must not move its counters.
	if err := store.RecordPage("run-5", 3); err != nil {
		t.Fatalf("RecordPage after finalize failed: %v", err)
	}
	if err := store.RecordError("run-5"); err != nil {
		t.Fatalf("RecordError after finalize failed: %v", err)
	}

	sess, err := store.GetSession("run-5")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess.PagesScraped != 1 || sess.ProductsFound != 7 {
		t.Errorf("Expected accounting frozen at pages=1 products=7, got pages=%d products=%d",
			sess.PagesScraped, sess.ProductsFound)
	}
	if sess.ErrorsCount != 0 {
		t.Errorf("Expected errors_count frozen at 0, got %d", sess.ErrorsCount)
	}
}

func TestSessionQuality(t *testing.T) {
	store := setupTestStore(t)

	if err := store.StartSession("run-q", "fora"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	records := []*crawler.Record{
		{URL: "https://fora.ua/p/1", Title: "Milk", Price: floatPtr(42.50), Currency: "UAH", ImageURL: "https://fora.ua/i/1.jpg"},
		{URL: "https://fora.ua/p/2", Title: "Bread", Price: floatPtr(18.90), Currency: "UAH"},
		{URL: "https://fora.ua/p/3", Title: "Eggs"},
		{URL: "https://fora.ua/p/4"},
	}
	for _, rec := range records {
		if _, err := store.UpsertVersioned(rec, "fora", "", "run-q"); err != nil {
			t.Fatalf("UpsertVersioned failed: %v", err)
		}
	}
	// A record from another session does not leak into this report.
	other := &crawler.Record{URL: "https://fora.ua/p/9", Title: "Butter", Price: floatPtr(99)}
	if _, err := store.UpsertVersioned(other, "fora", "", "run-other"); err != nil {
		t.Fatalf("UpsertVersioned failed: %v", err)
	}

	q, err := store.Quality("run-q")
	if err != nil {
		t.Fatalf("Quality failed: %v", err)
	}
	if q.Records != 4 {
		t.Errorf("Expected 4 records, got %d", q.Records)
	}
	if q.WithPrice != 2 {
		t.Errorf("Expected 2 priced records, got %d", q.WithPrice)
	}
	if q.WithTitle != 3 {
		t.Errorf("Expected 3 titled records, got %d", q.WithTitle)
	}
	if q.WithImage != 1 {
		t.Errorf("Expected 1 record with image, got %d", q.WithImage)
	}

	empty, err := store.Quality("run-unknown")
	if err != nil {
		t.Fatalf("Quality for unknown session failed: %v", err)
	}
	if empty.Records != 0 || empty.WithPrice != 0 {
		t.Errorf("Expected all-zero report for unknown session, got %+v", empty)
	}
}
