package collect

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pasis-project/pasis/internal/config"
	"github.com/pasis-project/pasis/internal/signal"
)

const maxPerFeed = 20

// newsCategoryRules classify a news item by keyword, checked in order.
// The first rule with a matching term wins.
var newsCategoryRules = []struct {
	category string
	terms    []string
}{
	{"Investment", []string{"funding", "raises", "raised", "investment", "series a", "series b", "series c", "valuation", "ipo"}},
	{"PoC Deployment", []string{"deploy", "pilot", "rollout", "factory", "warehouse", "trial"}},
	{"Partnership", []string{"partner", "collaboration", "joint venture", "agreement", "teams up"}},
	{"Regulation", []string{"regulat", "policy", "legislation", "compliance", "safety standard"}},
	{"Product Launch", []string{"launch", "unveil", "announce", "introduces", "reveals"}},
}

// FeedAdapter collects news items from the configured RSS/Atom feeds.
// Each feed carries its own scope; items that never mention a strategic
// keyword are dropped before they enter the pipeline.
type FeedAdapter struct {
	feeds    []config.Feed
	keywords []string
	quality  config.Quality
	parser   *gofeed.Parser
}

func NewFeedAdapter(feeds []config.Feed, keywords []string, quality config.Quality) *FeedAdapter {
	return &FeedAdapter{
		feeds:    feeds,
		keywords: keywords,
		quality:  quality,
		parser:   gofeed.NewParser(),
	}
}

func (a *FeedAdapter) Name() string { return "rss" }

// Fetch parses every configured feed. Feeds fail independently; the
// fetch errors only when all of them did.
func (a *FeedAdapter) Fetch(ctx context.Context, daysBack int) ([]signal.Record, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack)
	var all []signal.Record
	failures := 0

	for _, fc := range a.feeds {
		feed, err := a.parser.ParseURLWithContext(fc.URL, ctx)
		if err != nil {
			log.Printf("Failed to parse feed %s: %v", fc.URL, err)
			failures++
			continue
		}

		records := a.parseFeed(feed, fc, cutoff)
		all = append(all, records...)
		log.Printf("Parsed %d relevant item(s) from %s", len(records), fc.Name)
	}

	if failures == len(a.feeds) && len(a.feeds) > 0 {
		return nil, fmt.Errorf("all %d feeds failed to parse", failures)
	}
	return all, nil
}

func (a *FeedAdapter) parseFeed(feed *gofeed.Feed, fc config.Feed, cutoff time.Time) []signal.Record {
	scope := feedScope(fc.Scope)
	now := time.Now().UTC()

	var records []signal.Record
	for _, item := range feed.Items {
		if len(records) >= maxPerFeed {
			break
		}

		itemURL := item.Link
		if itemURL == "" {
			itemURL = item.GUID
		}
		title := strings.TrimSpace(item.Title)
		if itemURL == "" || title == "" {
			continue
		}

		var published time.Time
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC()
		}
		if !published.IsZero() && published.Before(cutoff) {
			continue
		}

		var content string
		if item.Content != "" {
			content = stripHTML(item.Content)
		} else if item.Description != "" {
			content = stripHTML(item.Description)
		}

		if !a.isRelevant(title, content) {
			continue
		}

		rec := signal.New(scope, classifyNews(title, content), title, content,
			signal.SourceMetadata{
				URL:             itemURL,
				Publisher:       fc.Name,
				PublishedAt:     published,
				ScrapedAt:       now,
				ConfidenceScore: signal.Confidence(a.quality.AuthorityFor(fc.Name)),
			})
		records = append(records, rec)
	}
	return records
}

// isRelevant keeps only items that mention at least one strategic
// keyword. With no keywords configured, everything passes.
func (a *FeedAdapter) isRelevant(title, content string) bool {
	if len(a.keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(title + " " + content)
	for _, kw := range a.keywords {
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// classifyNews assigns a sub-category from the rule table; items that
// match nothing are filed as general industry news.
func classifyNews(title, content string) string {
	haystack := strings.ToLower(title + " " + content)
	for _, rule := range newsCategoryRules {
		for _, term := range rule.terms {
			if strings.Contains(haystack, term) {
				return rule.category
			}
		}
	}
	return "Industry News"
}

func feedScope(raw string) signal.Scope {
	s := signal.Scope(raw)
	if s.Valid() {
		return s
	}
	return signal.ScopeCase
}

// stripHTML removes tags, decodes the common entities and collapses
// whitespace.
func stripHTML(text string) string {
	var b strings.Builder
	inTag := false
	for _, r := range text {
		if r == '<' {
			inTag = true
			b.WriteRune(' ')
			continue
		}
		if r == '>' {
			inTag = false
			continue
		}
		if !inTag {
			b.WriteRune(r)
		}
	}

	s := b.String()
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")

	return strings.Join(strings.Fields(s), " ")
}
