// Package archive persists quality-gated signals into the store.
//
// The archivist runs every batch through the same pipeline: validate,
// deduplicate, score against the quality threshold, then upsert. Bad
// records are reported but never abort the batch.
package archive

import (
	"fmt"
	"log"

	"github.com/pasis-project/pasis/internal/config"
	"github.com/pasis-project/pasis/internal/database"
	"github.com/pasis-project/pasis/internal/quality"
	"github.com/pasis-project/pasis/internal/signal"
)

// BatchResult summarizes one ingest run.
type BatchResult struct {
	RowsInserted int
	RowsUpdated  int
	Skipped      int
	Errors       []string
}

// Archivist owns the quality configuration and the database handle.
// Deduplication state is scoped to a single batch; across batches the
// upsert's event_id identity makes re-ingestion safe.
type Archivist struct {
	cfg *config.Config
	db  *database.DB
}

func New(cfg *config.Config, db *database.DB) *Archivist {
	return &Archivist{cfg: cfg, db: db}
}

// IngestBatch validates, deduplicates, scores and stores a batch of
// records. Records below the quality threshold are skipped silently;
// validation and storage failures are collected per record so one bad
// item cannot poison the rest of the batch.
func (a *Archivist) IngestBatch(records []signal.Record) BatchResult {
	var result BatchResult
	gate := quality.NewGate(a.cfg)

	valid := make([]signal.Record, 0, len(records))
	for _, rec := range records {
		ok, errs := gate.Validate(rec)
		if !ok {
			for _, e := range errs {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", rec.Title, e))
			}
			continue
		}
		valid = append(valid, rec)
	}

	unique := gate.Deduplicate(valid)
	dropped := len(valid) - len(unique)
	if dropped > 0 {
		log.Printf("Archivist: dropped %d duplicate(s)", dropped)
	}

	// Collectors mint a fresh event ID per observation, so a re-observed
	// article must adopt the event ID already stored for its URL or the
	// upsert would insert a second row.
	urls := make([]string, 0, len(unique))
	for _, rec := range unique {
		urls = append(urls, rec.Source.URL)
	}
	stored, err := a.db.EventIDsBySourceURL(urls)
	if err != nil {
		log.Printf("Archivist: event ID lookup failed: %v", err)
		stored = nil
	}

	for i := range unique {
		if id, ok := stored[unique[i].Source.URL]; ok {
			unique[i].EventID = id
		}
	}

	for _, rec := range unique {
		score := gate.Score(rec)
		if score < gate.MinScore() {
			result.Skipped++
			continue
		}
		rec.DataQualityScore = score

		inserted, id, err := a.db.UpsertSignal(rec)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: store: %v", rec.Title, err))
			continue
		}
		if inserted {
			result.RowsInserted++
		} else {
			result.RowsUpdated++
			log.Printf("Archivist: refreshed existing signal %s", id)
		}
	}

	log.Printf("Archivist: batch done (%d inserted, %d updated, %d below threshold, %d errors)",
		result.RowsInserted, result.RowsUpdated, result.Skipped, len(result.Errors))
	return result
}
