// Package quality implements the validation, deduplication, and scoring
// stage between collection and persistence.
package quality

import (
	"fmt"
	"log"
	"math"
	"net/url"
	"time"

	"github.com/pasis-project/pasis/internal/config"
	"github.com/pasis-project/pasis/internal/signal"
)

// Score weights. The four factors are independent and their weights are
// fixed; only the authority table and the minimum threshold are calibrated
// through config.
const (
	weightCompleteness = 0.40
	weightAuthority    = 0.30
	weightRichness     = 0.20
	weightTimeliness   = 0.10

	timelinessWindowDays = 60
)

// Gate validates, deduplicates, and scores signal records. The seen-hash
// set lives for the lifetime of one Gate, so construct a fresh Gate per
// pipeline run; cross-run duplicate suppression happens at the store.
type Gate struct {
	cfg  *config.Config
	seen map[string]struct{}
	now  func() time.Time
}

// NewGate creates a quality gate with an empty dedup set.
func NewGate(cfg *config.Config) *Gate {
	return &Gate{
		cfg:  cfg,
		seen: make(map[string]struct{}),
		now:  time.Now,
	}
}

// Validate checks a record against the schema rules and returns every
// violation found, not just the first.
func (g *Gate) Validate(rec signal.Record) (bool, []string) {
	var errs []string

	if rec.Title == "" {
		errs = append(errs, "missing required field: title")
	}
	if rec.Scope == "" {
		errs = append(errs, "missing required field: scope")
	}
	if !rec.Scope.Valid() {
		errs = append(errs, fmt.Sprintf("invalid scope: %q (allowed: %v)", rec.Scope, signal.Scopes))
	}

	meta := rec.Source
	if meta == (signal.SourceMetadata{}) {
		errs = append(errs, "missing required field: source_metadata")
	}

	if meta.URL == "" {
		errs = append(errs, "missing source_metadata.url")
	} else if !validURL(meta.URL) {
		errs = append(errs, fmt.Sprintf("invalid URL format: %q", clip(meta.URL, 80)))
	}
	if meta.PublishedAt.IsZero() {
		errs = append(errs, "missing source_metadata.published_at")
	}
	if meta.ConfidenceScore != nil {
		if c := *meta.ConfidenceScore; c < 0.0 || c > 1.0 {
			errs = append(errs, fmt.Sprintf("confidence_score out of range: %v", c))
		}
	}

	return len(errs) == 0, errs
}

// Deduplicate drops records whose content hash has already been seen by
// this gate, first occurrence winning, and stamps survivors with their
// hash. The seen set is mutated, so later batches in the same run are
// deduplicated against earlier ones.
func (g *Gate) Deduplicate(records []signal.Record) []signal.Record {
	unique := make([]signal.Record, 0, len(records))
	for _, rec := range records {
		h := rec.Hash()
		if _, ok := g.seen[h]; ok {
			log.Printf("duplicate dropped: %s", clip(rec.Title, 50))
			continue
		}
		g.seen[h] = struct{}{}
		rec.ContentHash = h
		unique = append(unique, rec)
	}

	if removed := len(records) - len(unique); removed > 0 {
		log.Printf("deduplication: %d removed, %d kept", removed, len(unique))
	}
	return unique
}

// Score computes the data quality score in [0.0, 1.0] as a weighted sum
// of metadata completeness, source authority, content richness, and
// timeliness, rounded to 3 decimals.
func (g *Gate) Score(rec signal.Record) float64 {
	meta := rec.Source

	present := 0
	if meta.URL != "" {
		present++
	}
	if meta.Publisher != "" {
		present++
	}
	if !meta.PublishedAt.IsZero() {
		present++
	}
	if !meta.ScrapedAt.IsZero() {
		present++
	}
	if meta.ConfidenceScore != nil {
		present++
	}
	completeness := float64(present) / 5.0

	authority := g.cfg.Quality.AuthorityFor(meta.Publisher)

	titleLen := float64(len(rec.Title))
	contentLen := float64(len(rec.Content()))
	richness := math.Min((titleLen/50)*0.3+(contentLen/500)*0.7, 1.0)

	timeliness := 0.5
	if !meta.PublishedAt.IsZero() {
		ageDays := g.now().Sub(meta.PublishedAt).Hours() / 24
		timeliness = math.Max(0.0, 1.0-ageDays/timelinessWindowDays)
	}

	score := completeness*weightCompleteness +
		authority*weightAuthority +
		richness*weightRichness +
		timeliness*weightTimeliness

	return math.Round(math.Min(score, 1.0)*1000) / 1000
}

// MinScore returns the configured persistence threshold.
func (g *Gate) MinScore() float64 {
	return g.cfg.Quality.MinScore
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func clip(s string, max int) string {
	return signal.Truncate(s, max)
}
