package signal

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Scope is the top-level taxonomy bucket for a signal.
type Scope string

const (
	ScopeMarket Scope = "Market"
	ScopeTech   Scope = "Tech"
	ScopeCase   Scope = "Case"
	ScopePolicy Scope = "Policy"
)

// Scopes lists every valid scope value.
var Scopes = []Scope{ScopeMarket, ScopeTech, ScopeCase, ScopePolicy}

// Valid reports whether s is one of the four known scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeMarket, ScopeTech, ScopeCase, ScopePolicy:
		return true
	}
	return false
}

// Storage caps for collected text.
const (
	MaxTitleLen   = 500
	MaxContentLen = 5000
)

// SourceMetadata describes where and when a signal was observed.
type SourceMetadata struct {
	URL             string    `json:"url"`
	Publisher       string    `json:"publisher"`
	PublishedAt     time.Time `json:"published_at"`
	ScrapedAt       time.Time `json:"scraped_at"`
	ConfidenceScore *float64  `json:"confidence_score,omitempty"`
}

// Record is one ingested unit of market/tech/case/policy information
// about the physical-AI domain. Adapters create records raw; the quality
// gate validates and scores them; the enricher fills the narrative fields.
type Record struct {
	EventID              string         `json:"event_id"`
	Scope                Scope          `json:"scope"`
	Category             string         `json:"category,omitempty"`
	Title                string         `json:"title"`
	RawContent           string         `json:"raw_content,omitempty"`
	Summary              string         `json:"summary,omitempty"`
	StrategicImplication string         `json:"strategic_implication,omitempty"`
	KeyInsights          []string       `json:"key_insights,omitempty"`
	Source               SourceMetadata `json:"source_metadata"`
	ContentHash          string         `json:"content_hash,omitempty"`
	DataQualityScore     float64        `json:"data_quality_score,omitempty"`
	ProcessingPipeline   string         `json:"processing_pipeline,omitempty"`
	SchemaVersion        string         `json:"schema_version,omitempty"`
	AnalyzedBy           string         `json:"analyzed_by,omitempty"`
}

// New builds a record in the common shape with a fresh event ID and
// the title/content length caps applied.
func New(scope Scope, category, title, rawContent string, meta SourceMetadata) Record {
	return Record{
		EventID:    uuid.NewString(),
		Scope:      scope,
		Category:   category,
		Title:      Truncate(title, MaxTitleLen),
		RawContent: Truncate(rawContent, MaxContentLen),
		Source:     meta,
	}
}

// Hash returns the SHA-256 hash over the lowercased, trimmed "title|url"
// pair. Two records for the same real-world item hash identically even
// when they carry different event IDs.
func (r Record) Hash() string {
	raw := strings.TrimSpace(strings.ToLower(r.Title + "|" + r.Source.URL))
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Content returns the text used for richness scoring and enrichment:
// raw content when present, the summary otherwise.
func (r Record) Content() string {
	if r.RawContent != "" {
		return r.RawContent
	}
	return r.Summary
}

// Confidence wraps a confidence score for the optional metadata field.
func Confidence(v float64) *float64 { return &v }

// Truncate caps s at max code points, never splitting a rune.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
