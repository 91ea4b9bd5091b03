package archive

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pasis-project/pasis/internal/config"
	"github.com/pasis-project/pasis/internal/database"
	"github.com/pasis-project/pasis/internal/signal"
)

func testConfig() *config.Config {
	return &config.Config{
		Quality: config.Quality{
			MinScore:         0.5,
			DefaultAuthority: 0.60,
			LookbackDays:     14,
			AuthorityWeights: []config.AuthorityWeight{
				{Match: "SEC", Weight: 0.95},
				{Match: "arXiv", Weight: 0.90},
				{Match: "TechCrunch", Weight: 0.70},
			},
		},
	}
}

func newTestArchivist(t *testing.T) *Archivist {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "pasis.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(testConfig(), db)
}

// richRecord is complete enough to clear the 0.5 quality threshold.
func richRecord(eventID, url string) signal.Record {
	return signal.Record{
		EventID:    eventID,
		Scope:      signal.ScopeMarket,
		Category:   "Investment",
		Title:      "Figure AI closes a major funding round for humanoid robot manufacturing",
		RawContent: strings.Repeat("Humanoid robotics funding details. ", 20),
		Source: signal.SourceMetadata{
			URL:             url,
			Publisher:       "SEC EDGAR",
			PublishedAt:     time.Now().UTC().AddDate(0, 0, -1),
			ScrapedAt:       time.Now().UTC(),
			ConfidenceScore: signal.Confidence(0.95),
		},
	}
}

// sparseRecord passes validation but scores well below the threshold:
// minimal metadata, no content, stale publication date.
func sparseRecord(eventID, title, url string) signal.Record {
	return signal.Record{
		EventID: eventID,
		Scope:   signal.ScopeTech,
		Title:   title,
		Source: signal.SourceMetadata{
			URL:         url,
			PublishedAt: time.Now().UTC().AddDate(0, 0, -120),
		},
	}
}

func TestIngestBatchBelowThresholdNotStored(t *testing.T) {
	a := newTestArchivist(t)

	result := a.IngestBatch([]signal.Record{sparseRecord("evt-low", "Thin", "https://example.com/thin")})
	if result.RowsInserted != 0 || result.RowsUpdated != 0 {
		t.Errorf("below-threshold record was stored: %+v", result)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
}

func TestIngestBatchValidationErrorsCollected(t *testing.T) {
	a := newTestArchivist(t)

	bad := richRecord("evt-bad", "https://example.com/a")
	bad.Scope = "Gossip"

	result := a.IngestBatch([]signal.Record{bad, richRecord("evt-ok", "https://example.com/b")})
	if result.RowsInserted != 1 {
		t.Errorf("RowsInserted = %d, want 1", result.RowsInserted)
	}
	if len(result.Errors) == 0 {
		t.Error("expected a validation error for the invalid scope")
	}
}

func TestIngestBatchEndToEnd(t *testing.T) {
	a := newTestArchivist(t)

	dupA := sparseRecord("evt-dup-a", "Quadruped gait survey", "https://example.com/gait")
	dupB := sparseRecord("evt-dup-b", "  QUADRUPED GAIT SURVEY", "https://example.com/gait")

	invalid := richRecord("evt-invalid", "https://example.com/invalid")
	invalid.Scope = "Rumor"

	low := sparseRecord("evt-low", "Short note", "https://example.com/low")

	valid := richRecord("evt-valid", "https://www.sec.gov/filings/figure-s1")

	batch := []signal.Record{dupA, dupB, invalid, low, valid}

	result := a.IngestBatch(batch)
	if result.RowsInserted != 1 {
		t.Errorf("RowsInserted = %d, want 1", result.RowsInserted)
	}
	if result.RowsUpdated != 0 {
		t.Errorf("RowsUpdated = %d, want 0", result.RowsUpdated)
	}
	if len(result.Errors) != 1 {
		t.Errorf("Errors = %v, want exactly one (invalid scope)", result.Errors)
	}

	// Re-ingesting the same batch updates the one stored record and
	// inserts nothing new.
	again := a.IngestBatch(batch)
	if again.RowsInserted != 0 {
		t.Errorf("re-ingest RowsInserted = %d, want 0", again.RowsInserted)
	}
	if again.RowsUpdated != 1 {
		t.Errorf("re-ingest RowsUpdated = %d, want 1", again.RowsUpdated)
	}
}

func TestIngestBatchReobservedArticleUpdatesInPlace(t *testing.T) {
	a := newTestArchivist(t)

	first := richRecord("", "https://www.sec.gov/filings/figure-s1")
	if result := a.IngestBatch([]signal.Record{first}); result.RowsInserted != 1 {
		t.Fatalf("first run: %+v", result)
	}

	// A later collector run observes the same article and mints a fresh
	// event ID for it.
	second := richRecord("", "https://www.sec.gov/filings/figure-s1")
	second.Summary = "Updated summary from the second run."

	result := a.IngestBatch([]signal.Record{second})
	if result.RowsInserted != 0 {
		t.Errorf("re-observed article inserted again: %+v", result)
	}
	if result.RowsUpdated != 1 {
		t.Errorf("RowsUpdated = %d, want 1", result.RowsUpdated)
	}

	stats, err := a.db.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalSignals != 1 {
		t.Errorf("store holds %d rows for one article, want 1", stats.TotalSignals)
	}

	known, err := a.db.EventIDsBySourceURL([]string{"https://www.sec.gov/filings/figure-s1"})
	if err != nil {
		t.Fatalf("EventIDsBySourceURL: %v", err)
	}
	stored, err := a.db.GetSignalByEventID(known["https://www.sec.gov/filings/figure-s1"])
	if err != nil || stored == nil {
		t.Fatalf("stored signal lookup failed: %v", err)
	}
	if stored.Summary == nil || *stored.Summary != "Updated summary from the second run." {
		t.Error("second observation should update the stored row's summary")
	}
}

func TestIngestBatchStampsQualityScore(t *testing.T) {
	a := newTestArchivist(t)

	rec := richRecord("evt-scored", "https://www.sec.gov/filings/1")
	if result := a.IngestBatch([]signal.Record{rec}); result.RowsInserted != 1 {
		t.Fatalf("record not stored: %+v", result)
	}

	stored, err := a.db.GetSignalByEventID("evt-scored")
	if err != nil {
		t.Fatalf("GetSignalByEventID: %v", err)
	}
	if stored == nil || stored.DataQualityScore == nil {
		t.Fatal("stored record missing data quality score")
	}
	if *stored.DataQualityScore < 0.5 || *stored.DataQualityScore > 1.0 {
		t.Errorf("data quality score = %f, want within (0.5, 1.0]", *stored.DataQualityScore)
	}
}
