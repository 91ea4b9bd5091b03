// Package fetch fills in full article text for signals whose feed only
// carried a teaser, using HTTP plus readability extraction.
package fetch

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/pasis-project/pasis/internal/signal"
)

// Content below this length is treated as a teaser worth replacing.
const minUsefulContent = 200

// Extractions shorter than this are boilerplate, not article text.
const minExtractedContent = 100

// Result holds the results of a content fetch run.
type Result struct {
	Fetched int
	Skipped int
	Failed  int
}

// ContentFetcher fetches full article text for thin records.
type ContentFetcher struct {
	client *http.Client
}

func NewContentFetcher(timeout time.Duration) *ContentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ContentFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// FillMissingContent fetches article text for records whose collected
// content is too thin to analyze, mutating them in place. A domain that
// errors once is skipped for the rest of the run.
func (f *ContentFetcher) FillMissingContent(ctx context.Context, records []signal.Record) *Result {
	result := &Result{}
	failedDomains := make(map[string]struct{})

	for i := range records {
		rec := &records[i]
		if len(rec.Content()) >= minUsefulContent {
			result.Skipped++
			continue
		}

		domain := hostOf(rec.Source.URL)
		if _, failed := failedDomains[domain]; failed {
			result.Failed++
			continue
		}

		content, httpErr := f.fetchPageContent(ctx, rec.Source.URL)
		if httpErr != nil {
			result.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			log.Printf("HTTP error for %s, skipping remaining from %s", rec.Source.URL, domain)
			continue
		}

		if content == "" {
			result.Failed++
			log.Printf("No extractable content from: %s", rec.Source.URL)
			continue
		}

		rec.RawContent = signal.Truncate(content, signal.MaxContentLen)
		result.Fetched++
	}

	log.Printf("Content fetch complete: %d fetched, %d already full, %d failed",
		result.Fetched, result.Skipped, result.Failed)
	return result
}

func (f *ContentFetcher) fetchPageContent(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "pasis/1.0 (signal collector)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil // connection error, not HTTP error
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(string(bodyBytes)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > minExtractedContent {
		return text, nil
	}
	return "", nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
