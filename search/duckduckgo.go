package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/smhanov/contextual"
	"golang.org/x/time/rate"
)

// DuckDuckGoEndpoint is the lite HTML interface, which is more stable for
// scraping than the JavaScript site.
const DuckDuckGoEndpoint = "https://lite.duckduckgo.com/lite/"

const ddgUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DuckDuckGo implements a searcher using DuckDuckGo's HTML lite interface.
// All instances share a limit of one query per second.
type DuckDuckGo struct {
	Endpoint   string
	MaxResults int

	client  *http.Client
	limiter *rate.Limiter
	backoff time.Duration
}

// NewDuckDuckGo creates a DuckDuckGo searcher with a modest timeout.
func NewDuckDuckGo() *DuckDuckGo {
	return NewDuckDuckGoWithClient(&http.Client{Timeout: 15 * time.Second})
}

// NewDuckDuckGoWithClient creates a DuckDuckGo searcher using the supplied HTTP client.
// This is useful for overriding the default timeout.
func NewDuckDuckGoWithClient(client *http.Client) *DuckDuckGo {
	return &DuckDuckGo{
		Endpoint:   DuckDuckGoEndpoint,
		MaxResults: defaultMaxResults,
		client:     client,
		limiter:    limiterFor("duckduckgo", time.Second),
		backoff:    time.Second,
	}
}

// Search scrapes the DuckDuckGo lite HTML page for results.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]contextual.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}

	formData := url.Values{}
	formData.Set("q", query)

	var resp *http.Response
	delay := d.backoff
	for attempt := 0; ; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, strings.NewReader(formData.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", ddgUserAgent)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err = d.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			break
		}
		resp.Body.Close()

		// Back off and retry on 429, doubling the delay each time up to 30 s.
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay = nextBackoff(delay)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	return parseLiteResults(resp.Body, capResults(d.MaxResults))
}

// parseLiteResults extracts results from the lite page. Each result is a
// table row holding an a.result-link, usually followed by a row with a
// td.result-snippet. Snippets are read from the row after the link's own,
// so a result without one gets an empty snippet.
func parseLiteResults(r io.Reader, limit int) ([]contextual.SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: parse html: %w", err)
	}

	var results []contextual.SearchResult
	doc.Find("a.result-link").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = resolveRedirect(strings.TrimSpace(href))
		title := collapseSpace(s.Text())
		// Skip ad results or empty results
		if href == "" || title == "" {
			return true
		}
		snippet := collapseSpace(s.Closest("tr").Next().Find("td.result-snippet").First().Text())
		results = append(results, contextual.SearchResult{Title: title, URL: href, Snippet: snippet})
		return len(results) < limit
	})

	if len(results) == 0 {
		results = fallbackLinks(doc, limit)
	}
	return results, nil
}

// fallbackLinks collects external links when the result markup changes.
func fallbackLinks(doc *goquery.Document, limit int) []contextual.SearchResult {
	var results []contextual.SearchResult
	seen := make(map[string]bool)
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = resolveRedirect(strings.TrimSpace(href))
		title := collapseSpace(s.Text())

		// Skip DuckDuckGo internal links
		if href == "" || strings.Contains(href, "duckduckgo.com") ||
			strings.HasPrefix(href, "/") ||
			strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") {
			return true
		}
		// Skip if title is too short or looks like navigation
		if len(title) < 5 || seen[href] {
			return true
		}
		seen[href] = true
		results = append(results, contextual.SearchResult{Title: title, URL: href})
		return len(results) < limit
	})
	return results
}

// resolveRedirect unwraps DuckDuckGo's //duckduckgo.com/l/?uddg=<url> links.
func resolveRedirect(href string) string {
	if !strings.Contains(href, "duckduckgo.com/l/") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stripTags removes the <strong> highlighting some APIs put in snippets.
func stripTags(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return collapseSpace(doc.Text())
}
