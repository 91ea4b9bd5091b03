package collect

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/pasis-project/pasis/internal/config"
	"github.com/pasis-project/pasis/internal/signal"
)

const arxivAPIBaseURL = "http://export.arxiv.org/api/query"

const arxivConfidence = 0.90

// arxivCategoryNames maps arXiv taxonomy codes to the sub-classification
// stored on the signal.
var arxivCategoryNames = map[string]string{
	"cs.RO": "Robotics",
	"cs.AI": "AI Research",
	"cs.CV": "Computer Vision",
	"cs.LG": "Machine Learning",
	"cs.SY": "Systems & Control",
}

// ArxivAdapter collects recent papers from the arXiv Atom API, one
// query per configured category.
type ArxivAdapter struct {
	categories []string
	keywords   []string
	maxResults int
	limiter    *rate.Limiter
	parser     *gofeed.Parser
}

func NewArxivAdapter(cfg config.ArXiv, keywords []string) *ArxivAdapter {
	return &ArxivAdapter{
		categories: cfg.Categories,
		keywords:   keywords,
		maxResults: cfg.MaxResults,
		limiter:    rate.NewLimiter(rate.Every(config.RateLimit(cfg.RateLimitSeconds)), 1),
		parser:     gofeed.NewParser(),
	}
}

func (a *ArxivAdapter) Name() string { return "arxiv" }

// Fetch queries each configured category for recent papers matching the
// strategic keywords. A category that fails is skipped; the whole fetch
// errors only when every category failed.
func (a *ArxivAdapter) Fetch(ctx context.Context, daysBack int) ([]signal.Record, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack)
	var all []signal.Record
	failures := 0

	for _, cat := range a.categories {
		if err := a.limiter.Wait(ctx); err != nil {
			return all, err
		}

		records, err := a.fetchCategory(ctx, cat, cutoff)
		if err != nil {
			failures++
			continue
		}
		all = append(all, records...)
	}

	if failures == len(a.categories) && len(a.categories) > 0 {
		return nil, fmt.Errorf("all %d arXiv category queries failed", failures)
	}
	return all, nil
}

func (a *ArxivAdapter) fetchCategory(ctx context.Context, category string, cutoff time.Time) ([]signal.Record, error) {
	params := url.Values{
		"search_query": {a.buildQuery(category)},
		"sortBy":       {"submittedDate"},
		"sortOrder":    {"descending"},
		"max_results":  {fmt.Sprintf("%d", a.maxResults)},
	}

	feed, err := a.parser.ParseURLWithContext(arxivAPIBaseURL+"?"+params.Encode(), ctx)
	if err != nil {
		return nil, fmt.Errorf("arxiv query for %s: %w", category, err)
	}

	now := time.Now().UTC()
	var records []signal.Record
	for _, item := range feed.Items {
		if item.Link == "" || item.Title == "" {
			continue
		}

		var published time.Time
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		}
		if !published.IsZero() && published.Before(cutoff) {
			continue
		}

		abstract := strings.Join(strings.Fields(item.Description), " ")
		rec := signal.New(signal.ScopeTech, arxivCategory(category),
			strings.Join(strings.Fields(item.Title), " "), abstract,
			signal.SourceMetadata{
				URL:             item.Link,
				Publisher:       "arXiv",
				PublishedAt:     published,
				ScrapedAt:       now,
				ConfidenceScore: signal.Confidence(arxivConfidence),
			})
		records = append(records, rec)
	}
	return records, nil
}

// buildQuery restricts a category to papers mentioning at least one
// strategic keyword, e.g. cat:cs.RO AND (all:"humanoid robot" OR ...).
func (a *ArxivAdapter) buildQuery(category string) string {
	if len(a.keywords) == 0 {
		return "cat:" + category
	}

	terms := make([]string, 0, len(a.keywords))
	for _, kw := range a.keywords {
		terms = append(terms, fmt.Sprintf("all:%q", kw))
	}
	return fmt.Sprintf("cat:%s AND (%s)", category, strings.Join(terms, " OR "))
}

func arxivCategory(code string) string {
	if name, ok := arxivCategoryNames[code]; ok {
		return name
	}
	return code
}
