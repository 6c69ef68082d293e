package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smhanov/contextual"
	"golang.org/x/time/rate"
)

// BraveEndpoint is the Brave web search API URL.
const BraveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// Brave uses the Brave Search API. An API key is required via X-Subscription-Token.
// All instances sharing an API key share one limiter, matching Brave's
// limit of one request per second per key.
type Brave struct {
	APIKey     string
	Endpoint   string
	MaxResults int

	client  *http.Client
	limiter *rate.Limiter
}

// NewBrave constructs a Brave search provider.
func NewBrave(apiKey string) *Brave {
	return NewBraveWithClient(apiKey, &http.Client{Timeout: 10 * time.Second})
}

// NewBraveWithClient constructs a Brave search provider using the supplied HTTP client.
// This is useful for overriding the default timeout.
func NewBraveWithClient(apiKey string, client *http.Client) *Brave {
	return &Brave{
		APIKey:     apiKey,
		Endpoint:   BraveEndpoint,
		MaxResults: defaultMaxResults,
		client:     client,
		limiter:    limiterFor("brave:"+apiKey, time.Second),
	}
}

// Search executes a Brave query.
func (b *Brave) Search(ctx context.Context, query string) ([]contextual.SearchResult, error) {
	if strings.TrimSpace(b.APIKey) == "" {
		return nil, errors.New("brave: API key is missing")
	}
	limit := capResults(b.MaxResults)
	endpoint := fmt.Sprintf("%s?q=%s&count=%d", b.Endpoint, url.QueryEscape(query), limit)

	var resp *http.Response
	for attempt := 0; ; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Subscription-Token", b.APIKey)

		resp, err = b.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			// The per-second bucket is spent; hold the next caller back.
			if braveBucketEmpty(resp.Header) {
				b.limiter.Reserve()
			}
			break
		}

		// 429: read the retry delay, then loop.
		wait := braveRetryDelay(resp.Header)
		resp.Body.Close()
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave http %d", resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("brave: decode response: %w", err)
	}

	results := make([]contextual.SearchResult, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		results = append(results, contextual.SearchResult{Title: r.Title, URL: r.URL, Snippet: stripTags(r.Description)})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// braveRetryDelay reads the X-RateLimit-Reset header to determine how long
// to wait before retrying. The header contains a comma-separated list of
// reset times in seconds (e.g. "1, 1419704"); we use the smallest value.
// Falls back to 1 second if the header is missing or unparseable.
func braveRetryDelay(h http.Header) time.Duration {
	raw := h.Get("X-RateLimit-Reset")
	if raw == "" {
		return 1 * time.Second
	}
	minReset := -1
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			continue
		}
		if minReset < 0 || n < minReset {
			minReset = n
		}
	}
	if minReset <= 0 {
		return 1 * time.Second
	}
	return time.Duration(minReset) * time.Second
}

// braveBucketEmpty reports whether X-RateLimit-Remaining says the
// per-second bucket is exhausted. The header is comma-separated:
// "0, 14832" (per-second, per-month).
func braveBucketEmpty(h http.Header) bool {
	raw := h.Get("X-RateLimit-Remaining")
	if raw == "" {
		return false
	}
	parts := strings.SplitN(raw, ",", 2)
	perSecond, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	return err == nil && perSecond <= 0
}
