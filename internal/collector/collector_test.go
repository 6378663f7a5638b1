package collector

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kingabzpro/ECom-Intel/internal/firecrawl"
	"github.com/kingabzpro/ECom-Intel/internal/progress"
	"github.com/kingabzpro/ECom-Intel/internal/review"
)

const (
	productURL = "https://shop.example/widget-pro"

	reviewPageMarkdown = `5 stars - Amazing quality, I love this product and would recommend it to anyone.
1 star - Terrible quality, the item broke on delivery and the service was poor.`
)

type fakeScraper struct {
	searchResults map[string][]firecrawl.SearchResult
	pages         map[string]firecrawl.ScrapedPage
	searchErr     error
	scrapeErrs    map[string]error
	searches      []string
	scrapes       []string
}

func (f *fakeScraper) Search(_ context.Context, query string, _ int) ([]firecrawl.SearchResult, error) {
	f.searches = append(f.searches, query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searchResults[query], nil
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (firecrawl.ScrapedPage, error) {
	f.scrapes = append(f.scrapes, url)
	if err := f.scrapeErrs[url]; err != nil {
		return firecrawl.ScrapedPage{}, err
	}
	return f.pages[url], nil
}

type fakeFetcher struct {
	body []byte
	err  error
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.urls = append(f.urls, url)
	return f.body, f.err
}

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func newCollector(scraper SearchScraper, fetcher PageFetcher, opts Options, emitter progress.Emitter) *Collector {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return New(scraper, fetcher, opts, emitter, clock, nil)
}

func TestCollectScrapesSearchHits(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{
		searchResults: map[string][]firecrawl.SearchResult{
			"Widget Pro reviews": {
				{URL: "https://reviews.example/widget-pro", Title: "Widget Pro review roundup"},
			},
		},
		pages: map[string]firecrawl.ScrapedPage{
			"https://reviews.example/widget-pro": {Markdown: reviewPageMarkdown},
		},
	}
	c := newCollector(scraper, nil, Options{}, nil)

	reviews, err := c.Collect(context.Background(), productURL, 5)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	require.Equal(t, "https://reviews.example/widget-pro", reviews[0].SourceURL)
	require.NotEmpty(t, reviews[0].Fingerprint)
	require.NotNil(t, reviews[0].Rating)

	// All three query shapes are attempted.
	require.Contains(t, scraper.searches, "Widget Pro reviews")
	require.Contains(t, scraper.searches, "Widget Pro customer reviews")
	require.Contains(t, scraper.searches, "Widget Pro user feedback rating")
	// The product page itself is never scraped when hits exist.
	require.NotContains(t, scraper.scrapes, productURL)
}

func TestCollectDeduplicatesAcrossPages(t *testing.T) {
	t.Parallel()

	sameReview := "5 stars - Amazing quality, I love this product and would recommend it to anyone."
	scraper := &fakeScraper{
		searchResults: map[string][]firecrawl.SearchResult{
			"Widget Pro reviews": {
				{URL: "https://reviews.example/a"},
				{URL: "https://reviews.example/b"},
			},
		},
		pages: map[string]firecrawl.ScrapedPage{
			"https://reviews.example/a": {Markdown: sameReview},
			"https://reviews.example/b": {Markdown: sameReview},
		},
	}
	c := newCollector(scraper, nil, Options{}, nil)

	reviews, err := c.Collect(context.Background(), productURL, 5)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
}

func TestCollectSkipsFailingPages(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{
		searchResults: map[string][]firecrawl.SearchResult{
			"Widget Pro reviews": {
				{URL: "https://reviews.example/broken"},
				{URL: "https://reviews.example/ok"},
			},
		},
		pages: map[string]firecrawl.ScrapedPage{
			"https://reviews.example/ok": {Markdown: reviewPageMarkdown},
		},
		scrapeErrs: map[string]error{
			"https://reviews.example/broken": review.E(review.KindScrape, "page timed out", nil),
		},
	}
	c := newCollector(scraper, nil, Options{}, nil)

	reviews, err := c.Collect(context.Background(), productURL, 5)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
}

func TestCollectAbortsOnRateLimit(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{
		searchResults: map[string][]firecrawl.SearchResult{
			"Widget Pro reviews": {{URL: "https://reviews.example/a"}},
		},
		scrapeErrs: map[string]error{
			"https://reviews.example/a": review.E(review.KindRateLimit, "slow down", nil),
		},
	}
	c := newCollector(scraper, nil, Options{}, nil)

	_, err := c.Collect(context.Background(), productURL, 5)
	require.Error(t, err)
	require.Equal(t, review.KindRateLimit, review.KindOf(err))
}

func TestCollectFallsBackToProductPage(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{
		pages: map[string]firecrawl.ScrapedPage{
			productURL: {Markdown: reviewPageMarkdown},
		},
	}
	c := newCollector(scraper, nil, Options{}, nil)

	reviews, err := c.Collect(context.Background(), productURL, 5)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	require.Equal(t, []string{productURL}, scraper.scrapes)
}

func TestCollectDirectFetchWhenScrapeAPIYieldsNothing(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{
		pages: map[string]firecrawl.ScrapedPage{
			productURL: {Markdown: "nothing useful on this page"},
		},
	}
	fetcher := &fakeFetcher{
		body: []byte(`<div class="review-box">Great product with good quality, works great and I would recommend this item to anyone shopping.</div>`),
	}
	c := newCollector(scraper, fetcher, Options{FallbackDirect: true}, nil)

	reviews, err := c.Collect(context.Background(), productURL, 5)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.Equal(t, []string{productURL}, fetcher.urls)
}

func TestCollectHonorsMaxPages(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{
		searchResults: map[string][]firecrawl.SearchResult{
			"Widget Pro reviews": {
				{URL: "https://reviews.example/a"},
				{URL: "https://reviews.example/b"},
				{URL: "https://reviews.example/c"},
			},
		},
		pages: map[string]firecrawl.ScrapedPage{
			"https://reviews.example/a": {Markdown: reviewPageMarkdown},
			"https://reviews.example/b": {Markdown: ""},
			"https://reviews.example/c": {Markdown: ""},
		},
	}
	c := newCollector(scraper, nil, Options{}, nil)

	_, err := c.Collect(context.Background(), productURL, 2)
	require.NoError(t, err)
	require.Len(t, scraper.scrapes, 2)
}

func TestCollectEmitsProgress(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{
		searchResults: map[string][]firecrawl.SearchResult{
			"Widget Pro reviews": {{URL: "https://reviews.example/a"}},
		},
		pages: map[string]firecrawl.ScrapedPage{
			"https://reviews.example/a": {Markdown: reviewPageMarkdown},
		},
	}
	emitter := &captureEmitter{}
	c := newCollector(scraper, nil, Options{}, emitter)

	runID := uuid.New()
	ctx := progress.WithRunID(context.Background(), runID)
	_, err := c.Collect(ctx, productURL, 5)
	require.NoError(t, err)

	require.Len(t, emitter.events, 2)
	require.Equal(t, progress.StageSearchDone, emitter.events[0].Stage)
	require.Equal(t, int64(1), emitter.events[0].Pages)
	require.Equal(t, progress.StagePageScraped, emitter.events[1].Stage)
	require.Equal(t, "reviews.example", emitter.events[1].Site)
	require.Equal(t, int64(2), emitter.events[1].Reviews)
	require.Equal(t, progress.UUIDToBytes(runID), emitter.events[1].RunID)
}

type captureEmitter struct {
	events []progress.Event
}

func (c *captureEmitter) Emit(evt progress.Event) {
	c.events = append(c.events, evt)
}

type countingLimiter struct {
	waits []string
	err   error
}

func (l *countingLimiter) Wait(_ context.Context, url string) error {
	l.waits = append(l.waits, url)
	return l.err
}

func TestCollectPacesScrapesThroughLimiter(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{
		searchResults: map[string][]firecrawl.SearchResult{
			"Widget Pro reviews": {
				{URL: "https://reviews.example/a"},
				{URL: "https://reviews.example/b"},
			},
		},
		pages: map[string]firecrawl.ScrapedPage{
			"https://reviews.example/a": {Markdown: reviewPageMarkdown},
			"https://reviews.example/b": {Markdown: reviewPageMarkdown},
		},
	}
	limiter := &countingLimiter{}
	c := newCollector(scraper, nil, Options{Limiter: limiter}, nil)

	_, err := c.Collect(context.Background(), productURL, 5)
	require.NoError(t, err)
	require.Equal(t, []string{"https://reviews.example/a", "https://reviews.example/b"}, limiter.waits)
}

func TestCollectSkipsPageWhenLimiterFails(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{
		searchResults: map[string][]firecrawl.SearchResult{
			"Widget Pro reviews": {{URL: "https://reviews.example/a"}},
		},
	}
	limiter := &countingLimiter{err: context.Canceled}
	c := newCollector(scraper, nil, Options{Limiter: limiter}, nil)

	reviews, err := c.Collect(context.Background(), productURL, 5)
	require.NoError(t, err)
	require.Empty(t, reviews)
	require.Empty(t, scraper.scrapes)
}
