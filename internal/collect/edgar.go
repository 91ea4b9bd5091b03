package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pasis-project/pasis/internal/config"
	"github.com/pasis-project/pasis/internal/signal"
)

const edgarSearchURL = "https://efts.sec.gov/LATEST/search-index"

// Regulatory filings are the most authoritative source we ingest.
const edgarConfidence = 0.95

// Cap the EDGAR query fan-out: a handful of keywords with a few hits
// each is plenty for a weekly signal sweep.
const (
	maxEdgarKeywords    = 4
	maxHitsPerKeyword   = 5
	edgarRequestTimeout = 30 * time.Second
)

// edgarFormNames maps SEC form types to the category stored on the
// signal.
var edgarFormNames = map[string]string{
	"10-K": "Annual Report",
	"10-Q": "Quarterly Report",
	"8-K":  "Current Report",
	"S-1":  "IPO Registration",
	"424B": "Prospectus",
}

// EdgarAdapter collects filings from the SEC EDGAR full-text search API
// that mention the configured keywords.
type EdgarAdapter struct {
	formTypes []string
	keywords  []string
	userAgent string
	limiter   *rate.Limiter
	client    *http.Client
}

func NewEdgarAdapter(cfg config.SEC) *EdgarAdapter {
	return &EdgarAdapter{
		formTypes: cfg.FormTypes,
		keywords:  cfg.Keywords,
		userAgent: cfg.UserAgent,
		limiter:   rate.NewLimiter(rate.Every(config.RateLimit(cfg.RateLimitSeconds)), 1),
		client:    &http.Client{Timeout: edgarRequestTimeout},
	}
}

func (a *EdgarAdapter) Name() string { return "sec-edgar" }

// Fetch runs one full-text search per keyword and keeps the top hits of
// each. Duplicate filings across keyword queries are collapsed by URL.
func (a *EdgarAdapter) Fetch(ctx context.Context, daysBack int) ([]signal.Record, error) {
	keywords := a.keywords
	if len(keywords) > maxEdgarKeywords {
		keywords = keywords[:maxEdgarKeywords]
	}
	if len(keywords) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var all []signal.Record
	failures := 0

	for _, kw := range keywords {
		if err := a.limiter.Wait(ctx); err != nil {
			return all, err
		}

		records, err := a.search(ctx, kw, daysBack)
		if err != nil {
			log.Printf("EDGAR search for %q failed: %v", kw, err)
			failures++
			continue
		}
		for _, rec := range records {
			if _, ok := seen[rec.Source.URL]; ok {
				continue
			}
			seen[rec.Source.URL] = struct{}{}
			all = append(all, rec)
		}
	}

	if failures == len(keywords) {
		return nil, fmt.Errorf("all %d EDGAR keyword searches failed", failures)
	}
	return all, nil
}

type edgarResponse struct {
	Hits struct {
		Hits []struct {
			ID     string `json:"_id"`
			Source struct {
				DisplayNames []string `json:"display_names"`
				FileType     string   `json:"file_type"`
				FileDate     string   `json:"file_date"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (a *EdgarAdapter) search(ctx context.Context, keyword string, daysBack int) ([]signal.Record, error) {
	params := url.Values{
		"q":       {fmt.Sprintf("%q", keyword)},
		"forms":   {strings.Join(a.formTypes, ",")},
		"startdt": {time.Now().UTC().AddDate(0, 0, -daysBack).Format("2006-01-02")},
		"enddt":   {time.Now().UTC().Format("2006-01-02")},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, edgarSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	// SEC rejects requests without a descriptive User-Agent.
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("EDGAR HTTP %d", resp.StatusCode)
	}

	var result edgarResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding EDGAR response: %w", err)
	}

	now := time.Now().UTC()
	var records []signal.Record
	for _, hit := range result.Hits.Hits {
		if len(records) >= maxHitsPerKeyword {
			break
		}

		filingURL := buildFilingURL(hit.ID, hit.Source.DisplayNames)
		if filingURL == "" {
			continue
		}

		company := companyName(hit.Source.DisplayNames)
		form := hit.Source.FileType

		var published time.Time
		if hit.Source.FileDate != "" {
			published, _ = time.Parse("2006-01-02", hit.Source.FileDate)
		}

		title := fmt.Sprintf("%s files %s mentioning %q", company, form, keyword)
		content := fmt.Sprintf("%s filed a %s with the SEC on %s that mentions %q.",
			company, form, hit.Source.FileDate, keyword)

		rec := signal.New(signal.ScopeMarket, edgarCategory(form), title, content,
			signal.SourceMetadata{
				URL:             filingURL,
				Publisher:       "SEC EDGAR",
				PublishedAt:     published,
				ScrapedAt:       now,
				ConfidenceScore: signal.Confidence(edgarConfidence),
			})
		records = append(records, rec)
	}
	return records, nil
}

// buildFilingURL assembles the archive URL from the hit ID
// ("accession:document") and the CIK embedded in display_names.
func buildFilingURL(hitID string, displayNames []string) string {
	accession, document, ok := strings.Cut(hitID, ":")
	if !ok || accession == "" || document == "" {
		return ""
	}

	cik := extractCIK(displayNames)
	if cik == "" {
		return ""
	}

	return fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%s/%s/%s",
		cik, strings.ReplaceAll(accession, "-", ""), document)
}

// extractCIK pulls the CIK number from a display name like
// "Tesla Inc (TSLA) (CIK 0001318605)".
func extractCIK(displayNames []string) string {
	for _, name := range displayNames {
		idx := strings.LastIndex(name, "(CIK ")
		if idx < 0 {
			continue
		}
		rest := name[idx+len("(CIK "):]
		end := strings.Index(rest, ")")
		if end <= 0 {
			continue
		}
		return strings.TrimLeft(rest[:end], "0")
	}
	return ""
}

func companyName(displayNames []string) string {
	if len(displayNames) == 0 {
		return "Unknown filer"
	}
	name := displayNames[0]
	if idx := strings.Index(name, " ("); idx > 0 {
		name = name[:idx]
	}
	return strings.TrimSpace(name)
}

func edgarCategory(form string) string {
	for prefix, name := range edgarFormNames {
		if strings.HasPrefix(form, prefix) {
			return name
		}
	}
	if form == "" {
		return "SEC Filing"
	}
	return form
}
