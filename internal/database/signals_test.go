package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pasis-project/pasis/internal/signal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "pasis.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRecord() signal.Record {
	return signal.Record{
		EventID:              "evt-001",
		Scope:                signal.ScopeTech,
		Category:             "Robotics",
		Title:                "Dexterous manipulation with tactile sensing",
		RawContent:           "Full abstract text of the paper.",
		Summary:              "A new tactile policy for dexterous hands.",
		StrategicImplication: "Manipulation is maturing faster than locomotion.",
		KeyInsights:          []string{"tactile sensing", "sim-to-real"},
		Source: signal.SourceMetadata{
			URL:             "https://arxiv.org/abs/2408.01234",
			Publisher:       "arXiv",
			PublishedAt:     time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
			ScrapedAt:       time.Date(2025, 8, 2, 9, 0, 0, 0, time.UTC),
			ConfidenceScore: signal.Confidence(0.90),
		},
		ContentHash:        "abc123",
		DataQualityScore:   0.85,
		ProcessingPipeline: "scout->enrich->archive",
		SchemaVersion:      "v1.0",
		AnalyzedBy:         "claude-sonnet-4-5",
	}
}

func TestUpsertSignalInsertsThenUpdates(t *testing.T) {
	db := openTestDB(t)
	rec := sampleRecord()

	inserted, id, err := db.UpsertSignal(rec)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !inserted {
		t.Error("first upsert should report an insert")
	}
	if id != rec.EventID {
		t.Errorf("event ID = %q, want %q", id, rec.EventID)
	}

	rec.Summary = "Revised summary after re-analysis."
	rec.Title = "A completely different title"
	rec.Source.URL = "https://example.com/other"
	inserted, id, err = db.UpsertSignal(rec)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if inserted {
		t.Error("second upsert should report an update, not an insert")
	}
	if id != rec.EventID {
		t.Errorf("event ID = %q, want %q", id, rec.EventID)
	}

	n, err := db.CountByEventID(rec.EventID)
	if err != nil {
		t.Fatalf("CountByEventID: %v", err)
	}
	if n != 1 {
		t.Errorf("row count = %d, want 1", n)
	}

	got, err := db.GetSignalByEventID(rec.EventID)
	if err != nil {
		t.Fatalf("GetSignalByEventID: %v", err)
	}
	if got == nil {
		t.Fatal("signal not found after upsert")
	}
	if got.Summary == nil || *got.Summary != "Revised summary after re-analysis." {
		t.Error("summary should be updated on re-upsert")
	}
	// Identity and source fields stay as first written.
	if got.Title != "Dexterous manipulation with tactile sensing" {
		t.Errorf("title was overwritten on update: %q", got.Title)
	}
	if got.SourceURL != "https://arxiv.org/abs/2408.01234" {
		t.Errorf("source URL was overwritten on update: %q", got.SourceURL)
	}
}

func TestUpsertSignalGeneratesEventID(t *testing.T) {
	db := openTestDB(t)
	rec := sampleRecord()
	rec.EventID = ""

	inserted, id, err := db.UpsertSignal(rec)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !inserted {
		t.Error("expected an insert")
	}
	if id == "" {
		t.Error("expected a generated event ID")
	}
}

func TestEventIDsBySourceURL(t *testing.T) {
	db := openTestDB(t)
	rec := sampleRecord()
	if _, _, err := db.UpsertSignal(rec); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	known, err := db.EventIDsBySourceURL([]string{
		rec.Source.URL,
		"https://example.com/never-seen",
	})
	if err != nil {
		t.Fatalf("EventIDsBySourceURL: %v", err)
	}
	if known[rec.Source.URL] != rec.EventID {
		t.Errorf("event ID for %s = %q, want %q", rec.Source.URL, known[rec.Source.URL], rec.EventID)
	}
	if _, ok := known["https://example.com/never-seen"]; ok {
		t.Error("unseen URL reported as known")
	}

	empty, err := db.EventIDsBySourceURL(nil)
	if err != nil {
		t.Fatalf("EventIDsBySourceURL(nil): %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty map for no URLs, got %d entries", len(empty))
	}
}

func TestUpsertSignalEmptyFieldsDoNotWipeEnrichment(t *testing.T) {
	db := openTestDB(t)
	rec := sampleRecord()
	if _, _, err := db.UpsertSignal(rec); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	raw := rec
	raw.Summary = ""
	raw.StrategicImplication = ""
	raw.KeyInsights = nil
	raw.AnalyzedBy = ""
	if _, _, err := db.UpsertSignal(raw); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := db.GetSignalByEventID(rec.EventID)
	if err != nil {
		t.Fatalf("GetSignalByEventID: %v", err)
	}
	if got == nil {
		t.Fatal("signal not found")
	}
	if got.Summary == nil || *got.Summary != rec.Summary {
		t.Error("empty summary on re-upsert should keep the stored one")
	}
	if got.StrategicImplication == nil || *got.StrategicImplication != rec.StrategicImplication {
		t.Error("empty implication on re-upsert should keep the stored one")
	}
	if len(got.KeyInsights) != len(rec.KeyInsights) {
		t.Errorf("key insights wiped on re-upsert: %v", got.KeyInsights)
	}
}

func TestSignalsByScope(t *testing.T) {
	db := openTestDB(t)

	recent := sampleRecord()
	recent.EventID = "evt-recent"
	recent.Source.PublishedAt = time.Now().UTC().AddDate(0, 0, -2)

	old := sampleRecord()
	old.EventID = "evt-old"
	old.Source.URL = "https://arxiv.org/abs/2301.00001"
	old.Source.PublishedAt = time.Now().UTC().AddDate(0, 0, -90)

	market := sampleRecord()
	market.EventID = "evt-market"
	market.Scope = signal.ScopeMarket
	market.Source.URL = "https://www.sec.gov/filing/1"
	market.Source.PublishedAt = time.Now().UTC().AddDate(0, 0, -1)

	for _, r := range []signal.Record{recent, old, market} {
		if _, _, err := db.UpsertSignal(r); err != nil {
			t.Fatalf("upsert %s: %v", r.EventID, err)
		}
	}

	tech, err := db.SignalsByScope("Tech", 14, 0)
	if err != nil {
		t.Fatalf("SignalsByScope: %v", err)
	}
	if len(tech) != 1 || tech[0].EventID != "evt-recent" {
		t.Errorf("Tech window query returned %d signals, want only evt-recent", len(tech))
	}

	all, err := db.SignalsByScope("", 14, 0)
	if err != nil {
		t.Fatalf("SignalsByScope all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("unscoped window query returned %d signals, want 2", len(all))
	}
	if len(all) == 2 && all[0].EventID != "evt-market" {
		t.Errorf("expected newest first, got %s", all[0].EventID)
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)

	a := sampleRecord()
	a.EventID = "evt-a"
	a.Source.ScrapedAt = time.Now().UTC()

	b := sampleRecord()
	b.EventID = "evt-b"
	b.Scope = signal.ScopeMarket
	b.Source.URL = "https://www.sec.gov/filing/2"
	b.Source.ScrapedAt = time.Now().UTC()
	b.Source.ConfidenceScore = signal.Confidence(0.95)

	for _, r := range []signal.Record{a, b} {
		if _, _, err := db.UpsertSignal(r); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalSignals != 2 {
		t.Errorf("TotalSignals = %d, want 2", stats.TotalSignals)
	}
	if stats.ThisWeek != 2 {
		t.Errorf("ThisWeek = %d, want 2", stats.ThisWeek)
	}
	if stats.ByScope["Tech"] != 1 || stats.ByScope["Market"] != 1 {
		t.Errorf("ByScope = %v", stats.ByScope)
	}
	if stats.AvgConfidence < 0.9 || stats.AvgConfidence > 0.95 {
		t.Errorf("AvgConfidence = %f", stats.AvgConfidence)
	}
}

func TestTopPublishers(t *testing.T) {
	db := openTestDB(t)

	for i, url := range []string{
		"https://arxiv.org/abs/1", "https://arxiv.org/abs/2", "https://www.sec.gov/1",
	} {
		r := sampleRecord()
		r.EventID = ""
		r.Source.URL = url
		if i == 2 {
			r.Source.Publisher = "SEC EDGAR"
		}
		if _, _, err := db.UpsertSignal(r); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	top, err := db.TopPublishers(5)
	if err != nil {
		t.Fatalf("TopPublishers: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("publisher count = %d, want 2", len(top))
	}
	if top[0].Publisher != "arXiv" || top[0].Count != 2 {
		t.Errorf("top publisher = %+v, want arXiv with 2", top[0])
	}
}
