// Package firecrawl is a minimal client for the Firecrawl v1 search and
// scrape endpoints, covering only what review collection needs.
package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kingabzpro/ECom-Intel/internal/review"
)

// maxBodyBytes caps response reads; scraped markdown for a single page
// should never come close.
const maxBodyBytes = 8 << 20

// Client talks to a Firecrawl-compatible API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// SearchResult is one hit from the search endpoint. Markdown is populated
// when scrapeOptions requested it.
type SearchResult struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

// ScrapedPage is the content of a single scraped URL.
type ScrapedPage struct {
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
}

// New builds a Client. baseURL should include the version prefix, e.g.
// https://api.firecrawl.dev/v1.
func New(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type searchRequest struct {
	Query         string        `json:"query"`
	Limit         int           `json:"limit"`
	ScrapeOptions scrapeOptions `json:"scrapeOptions"`
}

type scrapeOptions struct {
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type searchResponse struct {
	Success bool           `json:"success"`
	Error   string         `json:"error"`
	Data    []SearchResult `json:"data"`
}

// Search runs a web search, asking Firecrawl to scrape each hit to markdown
// inline. Limit bounds the number of hits.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	body := searchRequest{
		Query: query,
		Limit: limit,
		ScrapeOptions: scrapeOptions{
			Formats:         []string{"markdown"},
			OnlyMainContent: true,
		},
	}

	var resp searchResponse
	if err := c.post(ctx, "/search", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, review.E(review.KindScrape, fmt.Sprintf("search rejected: %s", respError(resp.Error)), nil)
	}
	c.logger.Debug("firecrawl search completed",
		zap.String("query", query), zap.Int("hits", len(resp.Data)))
	return resp.Data, nil
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	WaitFor         int      `json:"waitFor"`
}

type scrapeResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Data    ScrapedPage `json:"data"`
}

// Scrape fetches a single URL as markdown plus raw HTML. The waitFor delay
// gives client-rendered review widgets time to populate.
func (c *Client) Scrape(ctx context.Context, url string) (ScrapedPage, error) {
	body := scrapeRequest{
		URL:             url,
		Formats:         []string{"markdown", "html"},
		OnlyMainContent: true,
		WaitFor:         2000,
	}

	var resp scrapeResponse
	if err := c.post(ctx, "/scrape", body, &resp); err != nil {
		return ScrapedPage{}, err
	}
	if !resp.Success {
		return ScrapedPage{}, review.E(review.KindScrape, fmt.Sprintf("scrape rejected: %s", respError(resp.Error)), nil)
	}
	return resp.Data, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return review.E(review.KindScrape, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return review.E(review.KindScrape, "new request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return review.E(review.KindScrape, "call firecrawl "+path, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("Failed to close firecrawl response body", zap.Error(cerr))
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return review.E(review.KindScrape, "read firecrawl response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return review.E(review.KindConfig, "firecrawl rejected the API key", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return review.E(review.KindRateLimit, "firecrawl rate limit hit", nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return review.E(review.KindScrape, fmt.Sprintf("firecrawl %s returned status %d", path, resp.StatusCode), nil)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return review.E(review.KindScrape, "decode firecrawl response", err)
	}
	return nil
}

func respError(msg string) string {
	if msg == "" {
		return "no error detail"
	}
	return msg
}
