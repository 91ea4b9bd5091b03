// Package enrich attaches LLM-generated narrative fields to validated
// signal records. The collaborator is optional: when it is missing,
// failing, or returning garbage, records still leave this package with
// schema-valid placeholder text.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/pasis-project/pasis/internal/llm"
	"github.com/pasis-project/pasis/internal/signal"
)

const analysisPrompt = `You are a market strategy analyst covering the physical AI and humanoid robotics sector.
Analyze the signal below and return a structured assessment.

Analysis principles:
1. Pyramid principle: conclusion first, then evidence, then actions.
2. Classify the relevance angle: direct impact, future opportunity, competitive threat, or partnership potential.
3. Keep technical terms as-is; write for a strategy team, not a research team.

Input signal:
%s

Respond with ONLY this JSON:
{
    "summary": "Conclusion-first summary, 3-5 sentences",
    "strategic_implication": "Strategic takeaway and recommended action",
    "key_insights": ["insight 1", "insight 2", "insight 3"],
    "category": "Investment" | "M&A" | "PoC Deployment" | "Partnership" | "VLA Models" | "World Models" | "Humanoid Locomotion" | "Regulation" | "Standard" | "Industry News"
}`

const (
	initialBackoff = 2 * time.Second
	maxBackoff     = 30 * time.Second
)

// Enricher wraps an LLM provider with bounded retries and a deterministic
// fallback.
type Enricher struct {
	provider    llm.Provider
	label       string
	maxTokens   int
	maxAttempts int
	sleep       func(time.Duration)
}

// NewEnricher creates an enricher. provider may be nil, in which case
// every record gets fallback text. label names the model for the
// analyzed_by provenance stamp.
func NewEnricher(provider llm.Provider, label string, maxTokens, maxAttempts int) *Enricher {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Enricher{
		provider:    provider,
		label:       label,
		maxTokens:   maxTokens,
		maxAttempts: maxAttempts,
		sleep:       time.Sleep,
	}
}

// Enrich returns the record with summary, strategic_implication, and
// key_insights populated. It never returns an error: transient provider
// failures are retried with exponential backoff, and everything else
// falls back to placeholder text.
func (e *Enricher) Enrich(ctx context.Context, rec signal.Record) signal.Record {
	if e.provider == nil {
		return e.fallback(rec)
	}

	prompt := fmt.Sprintf(analysisPrompt, signalJSON(rec))

	var response string
	var err error
	backoff := initialBackoff
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		response, err = e.provider.Generate(ctx, prompt, e.maxTokens)
		if err == nil {
			break
		}
		log.Printf("enrichment attempt %d/%d failed: %v", attempt, e.maxAttempts, err)
		if attempt == e.maxAttempts {
			return e.fallback(rec)
		}
		e.sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	parsed := llm.ParseJSONResponse(response)
	if parsed == nil {
		log.Printf("enrichment response not parseable for %q, using fallback", clip(rec.Title, 40))
		return e.fallback(rec)
	}

	summary := llm.GetString(parsed, "summary", "")
	if summary == "" {
		return e.fallback(rec)
	}

	rec.Summary = summary
	rec.StrategicImplication = llm.GetString(parsed, "strategic_implication", "")
	if insights := llm.GetStringList(parsed, "key_insights"); len(insights) > 0 {
		if len(insights) > 5 {
			insights = insights[:5]
		}
		rec.KeyInsights = insights
	}
	if cat := llm.GetString(parsed, "category", ""); cat != "" {
		rec.Category = cat
	}
	rec.AnalyzedBy = e.label
	return rec
}

// EnrichAll enriches a batch sequentially, logging progress.
func (e *Enricher) EnrichAll(ctx context.Context, records []signal.Record) []signal.Record {
	out := make([]signal.Record, 0, len(records))
	for i, rec := range records {
		out = append(out, e.Enrich(ctx, rec))
		if (i+1)%10 == 0 {
			log.Printf("enrichment progress: %d/%d", i+1, len(records))
		}
	}
	return out
}

// fallback fills the narrative fields deterministically from title and
// publisher so downstream consumers always see schema-valid records.
func (e *Enricher) fallback(rec signal.Record) signal.Record {
	if rec.Summary == "" {
		rec.Summary = fmt.Sprintf("%s (signal collected from %s).", rec.Title, publisherOrUnknown(rec))
	}
	if rec.StrategicImplication == "" {
		rec.StrategicImplication = "Pending analyst review."
	}
	rec.AnalyzedBy = "fallback"
	return rec
}

// signalJSON renders the analysis-relevant slice of a record for the
// prompt, capping raw content to keep the request small.
func signalJSON(rec signal.Record) string {
	payload := map[string]string{
		"title":        rec.Title,
		"raw_content":  clip(rec.Content(), 600),
		"scope":        string(rec.Scope),
		"publisher":    rec.Source.Publisher,
		"published_at": rec.Source.PublishedAt.Format(time.RFC3339),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return rec.Title
	}
	return string(data)
}

func publisherOrUnknown(rec signal.Record) string {
	if rec.Source.Publisher != "" {
		return rec.Source.Publisher
	}
	return "an unknown source"
}

func clip(s string, max int) string {
	return signal.Truncate(s, max)
}
