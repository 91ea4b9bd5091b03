// Package collect gathers raw physical-AI signals from the configured
// sources: arXiv papers, SEC EDGAR filings and RSS news feeds.
package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pasis-project/pasis/internal/config"
	"github.com/pasis-project/pasis/internal/signal"
)

// Adapter is one source of signals. Fetch returns whatever it could
// collect within the lookback window; a failed upstream returns an error
// and the collector moves on.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, daysBack int) ([]signal.Record, error)
}

// Result holds the outcome of a collection run.
type Result struct {
	TotalFound int
	BySource   map[string]int
	Failures   []string
}

// Collector runs every configured adapter in sequence and snapshots the
// raw output before any downstream processing touches it.
type Collector struct {
	adapters []Adapter
	rawDir   string
}

// NewCollector builds a collector from the configured sources.
func NewCollector(cfg *config.Config) *Collector {
	c := &Collector{
		rawDir: filepath.Join(cfg.GetDataDir(), "raw"),
	}

	if cfg.Sources.ArXiv.Enabled {
		c.adapters = append(c.adapters, NewArxivAdapter(cfg.Sources.ArXiv, cfg.Keywords))
	}
	if cfg.Sources.SEC.Enabled {
		c.adapters = append(c.adapters, NewEdgarAdapter(cfg.Sources.SEC))
	}
	if len(cfg.Sources.Feeds) > 0 {
		c.adapters = append(c.adapters, NewFeedAdapter(cfg.Sources.Feeds, cfg.Keywords, cfg.Quality))
	}

	return c
}

// NewCollectorWithAdapters builds a collector over an explicit adapter
// set, without a raw snapshot directory.
func NewCollectorWithAdapters(adapters ...Adapter) *Collector {
	return &Collector{adapters: adapters}
}

// RunAll fetches from every adapter. One failing source never aborts
// the run; its error is logged and recorded, and the records from the
// remaining sources are returned.
func (c *Collector) RunAll(ctx context.Context, daysBack int) ([]signal.Record, *Result) {
	r := &Result{BySource: make(map[string]int)}
	var all []signal.Record

	for _, a := range c.adapters {
		log.Printf("Collecting from %s...", a.Name())
		records, err := a.Fetch(ctx, daysBack)
		if err != nil {
			log.Printf("Source %s unavailable: %v", a.Name(), err)
			r.Failures = append(r.Failures, fmt.Sprintf("%s: %v", a.Name(), err))
			continue
		}
		r.BySource[a.Name()] = len(records)
		all = append(all, records...)
	}
	r.TotalFound = len(all)

	if c.rawDir != "" && len(all) > 0 {
		if path, err := c.snapshotRaw(all); err != nil {
			log.Printf("Raw snapshot failed: %v", err)
		} else {
			log.Printf("Raw snapshot written to %s", path)
		}
	}

	log.Printf("Collection complete: %d signals from %d source(s), %d failure(s)",
		r.TotalFound, len(r.BySource), len(r.Failures))
	return all, r
}

// snapshotRaw writes the unprocessed collector output to a timestamped
// JSON file so a bad downstream run can be replayed.
func (c *Collector) snapshotRaw(records []signal.Record) (string, error) {
	if err := os.MkdirAll(c.rawDir, 0o755); err != nil {
		return "", fmt.Errorf("creating raw dir: %w", err)
	}

	name := time.Now().UTC().Format("20060102_150405") + "_scout.json"
	path := filepath.Join(c.rawDir, name)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	return path, nil
}
