// Package pipeline orchestrates a full signal run: collect, fetch,
// enrich, ingest.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pasis-project/pasis/internal/archive"
	"github.com/pasis-project/pasis/internal/collect"
	"github.com/pasis-project/pasis/internal/config"
	"github.com/pasis-project/pasis/internal/database"
	"github.com/pasis-project/pasis/internal/enrich"
	"github.com/pasis-project/pasis/internal/fetch"
	"github.com/pasis-project/pasis/internal/llm"
	"github.com/pasis-project/pasis/internal/signal"
)

// Lineage stamps written onto every record this pipeline stores.
const (
	pipelineName  = "scout->enrich->archive"
	schemaVersion = "v1.0"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Steps []StepResult
	Batch archive.BatchResult
}

// Options tune a single run.
type Options struct {
	DaysBack   int
	SkipEnrich bool
}

// Pipeline wires the collector, enricher and archivist together.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	provider llm.Provider
}

// New creates a pipeline. The LLM provider is resolved once here so a
// missing API key is reported at startup, not per record.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	en := cfg.Enrichment
	provider := llm.CreateProvider(en.Provider, en.Model, en.APIKeyEnv, en.OllamaModel, en.OllamaURL)

	return &Pipeline{
		cfg:      cfg,
		db:       db,
		provider: provider,
	}
}

// Run executes the 4-step pipeline. Every step degrades rather than
// aborts: a failed source, a down LLM or a rejected record all leave
// the rest of the run intact.
func (p *Pipeline) Run(ctx context.Context, opts Options) *Result {
	r := &Result{}
	daysBack := opts.DaysBack
	if daysBack <= 0 {
		daysBack = p.cfg.Quality.LookbackDays
	}

	// Step 1: Collect
	log.Println("Step 1/4: Collecting signals...")
	collector := collect.NewCollector(p.cfg)
	records, collectResult := collector.RunAll(ctx, daysBack)
	r.Steps = append(r.Steps, StepResult{
		Name: "Collect",
		Summary: fmt.Sprintf("Found %d signals from %d source(s), %d failure(s)",
			collectResult.TotalFound, len(collectResult.BySource), len(collectResult.Failures)),
	})
	if len(records) == 0 {
		return r
	}

	// Step 2: Fetch content
	log.Println("Step 2/4: Fetching full content...")
	fetcher := fetch.NewContentFetcher(15 * time.Second)
	fetchResult := fetcher.FillMissingContent(ctx, records)
	r.Steps = append(r.Steps, StepResult{
		Name: "Fetch",
		Summary: fmt.Sprintf("Fetched %d, %d already full, %d failed",
			fetchResult.Fetched, fetchResult.Skipped, fetchResult.Failed),
	})

	// Step 3: Enrich
	if opts.SkipEnrich {
		r.Steps = append(r.Steps, StepResult{Name: "Enrich", Summary: "Skipped by request"})
	} else {
		log.Println("Step 3/4: Enriching signals...")
		fresh, alreadyKnown := p.splitKnown(records)

		enricher := enrich.NewEnricher(p.provider, p.cfg.Enrichment.Model,
			p.cfg.Enrichment.MaxTokens, p.cfg.Enrichment.MaxAttempts)
		enriched := enricher.EnrichAll(ctx, fresh)

		// Already-known records are dropped here, not re-archived: they
		// carry fresh event IDs, and their stored rows already hold the
		// enriched content.
		records = enriched
		r.Steps = append(r.Steps, StepResult{
			Name:    "Enrich",
			Summary: fmt.Sprintf("Enriched %d signals, %d already archived", len(enriched), len(alreadyKnown)),
		})
	}

	// Step 4: Ingest
	log.Println("Step 4/4: Archiving signals...")
	for i := range records {
		records[i].ProcessingPipeline = pipelineName
		records[i].SchemaVersion = schemaVersion
	}
	archivist := archive.New(p.cfg, p.db)
	batch := archivist.IngestBatch(records)
	r.Batch = batch
	r.Steps = append(r.Steps, StepResult{
		Name: "Ingest",
		Summary: fmt.Sprintf("%d inserted, %d updated, %d below threshold, %d error(s)",
			batch.RowsInserted, batch.RowsUpdated, batch.Skipped, len(batch.Errors)),
	})

	return r
}

// splitKnown partitions a batch into records whose source URLs are new
// to the store and records already ingested. Known records skip
// enrichment and ingestion; the archivist's event ID adoption covers
// callers that bypass this filter.
func (p *Pipeline) splitKnown(records []signal.Record) (fresh, alreadyKnown []signal.Record) {
	urls := make([]string, 0, len(records))
	for _, rec := range records {
		urls = append(urls, rec.Source.URL)
	}

	known, err := p.db.EventIDsBySourceURL(urls)
	if err != nil {
		log.Printf("Known-URL prefilter unavailable: %v", err)
		return records, nil
	}

	for _, rec := range records {
		if _, ok := known[rec.Source.URL]; ok {
			alreadyKnown = append(alreadyKnown, rec)
		} else {
			fresh = append(fresh, rec)
		}
	}
	return fresh, alreadyKnown
}
