// Package fetch retrieves web pages as readable text for the agent's
// context when a search result carries no snippet.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const maxFetchBytes = 32 * 1024 // 32KB limit to avoid overwhelming LLM context

// maxBodyBytes bounds how much of a response is read before conversion.
const maxBodyBytes = 2 * 1024 * 1024

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// noiseSelector matches page chrome that never belongs in the context.
const noiseSelector = "script, style, noscript, nav, header, footer, aside, form, iframe"

// HTTPFetcher retrieves a URL and converts its HTML to markdown.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTP creates a HTTP fetcher with a modest timeout.
func NewHTTP() *HTTPFetcher {
	return NewHTTPWithClient(&http.Client{Timeout: 15 * time.Second})
}

// NewHTTPWithClient creates a HTTP fetcher using the supplied HTTP client.
func NewHTTPWithClient(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

// Fetch downloads the URL content, converts it to markdown, and truncates.
// Non-HTML text responses are returned as-is.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return "", errors.New("fetch url is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trimmed, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("fetch http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}

	var text string
	if isHTML(resp.Header.Get("Content-Type"), body) {
		text, err = toMarkdown(trimmed, string(body))
		if err != nil {
			return "", err
		}
	} else {
		text = strings.TrimSpace(string(body))
	}
	return truncate(text), nil
}

func isHTML(contentType string, body []byte) bool {
	if contentType != "" {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return strings.Contains(strings.ToLower(http.DetectContentType(body)), "html")
}

// toMarkdown strips page chrome and converts the remaining HTML. If the
// converter produces nothing useful the visible text is used instead.
func toMarkdown(baseURL, html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(noiseSelector).Remove()

	root := doc.Find("main, article").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	inner, err := root.Html()
	if err != nil {
		return "", err
	}
	converter := md.NewConverter(baseURL, true, nil)
	markdown, err := converter.ConvertString(inner)
	if err == nil && strings.TrimSpace(markdown) != "" {
		return strings.TrimSpace(markdown), nil
	}
	return collapseLines(root.Text()), nil
}

func collapseLines(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if l := strings.Join(strings.Fields(line), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func truncate(s string) string {
	if len(s) <= maxFetchBytes {
		return s
	}
	cut := maxFetchBytes
	// Do not split a multi-byte rune.
	for cut > 0 && cut < len(s) && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + "\n[TRUNCATED]"
}
