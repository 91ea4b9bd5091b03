package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pasis-project/pasis/internal/signal"
)

func thinRecord(url string) signal.Record {
	return signal.Record{
		EventID: "evt",
		Scope:   signal.ScopeCase,
		Title:   "Short teaser item",
		Source:  signal.SourceMetadata{URL: url},
	}
}

func articleHTML(paragraph string) string {
	return fmt.Sprintf(`<html><head><title>Test</title></head><body><article><h1>Test</h1><p>%s</p></article></body></html>`, paragraph)
}

func TestFillMissingContentFetchesThinRecords(t *testing.T) {
	body := strings.Repeat("Humanoid robots moved into production lines this year. ", 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleHTML(body))
	}))
	defer srv.Close()

	records := []signal.Record{thinRecord(srv.URL + "/a")}
	f := NewContentFetcher(5 * time.Second)
	result := f.FillMissingContent(context.Background(), records)

	if result.Fetched != 1 {
		t.Fatalf("Fetched = %d, want 1: %+v", result.Fetched, result)
	}
	if !strings.Contains(records[0].RawContent, "Humanoid robots") {
		t.Errorf("record content not filled: %q", records[0].RawContent)
	}
}

func TestFillMissingContentSkipsFullRecords(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	rec := thinRecord(srv.URL)
	rec.RawContent = strings.Repeat("already substantial content ", 20)

	f := NewContentFetcher(5 * time.Second)
	result := f.FillMissingContent(context.Background(), []signal.Record{rec})

	if called {
		t.Error("fetcher should not request URLs for records with full content")
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
}

func TestFillMissingContentSkipsFailedDomain(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	records := []signal.Record{
		thinRecord(srv.URL + "/a"),
		thinRecord(srv.URL + "/b"),
		thinRecord(srv.URL + "/c"),
	}

	f := NewContentFetcher(5 * time.Second)
	result := f.FillMissingContent(context.Background(), records)

	if hits != 1 {
		t.Errorf("server hits = %d, want 1 (domain short-circuit)", hits)
	}
	if result.Failed != 3 {
		t.Errorf("Failed = %d, want 3", result.Failed)
	}
}

func TestFillMissingContentTruncatesLongArticles(t *testing.T) {
	body := strings.Repeat("word ", signal.MaxContentLen)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleHTML(body))
	}))
	defer srv.Close()

	records := []signal.Record{thinRecord(srv.URL)}
	f := NewContentFetcher(5 * time.Second)
	f.FillMissingContent(context.Background(), records)

	if len(records[0].RawContent) > signal.MaxContentLen {
		t.Errorf("content length = %d, want <= %d", len(records[0].RawContent), signal.MaxContentLen)
	}
}
