// Package collector discovers review pages for a product and extracts
// deduplicated reviews from them.
package collector

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/kingabzpro/ECom-Intel/internal/firecrawl"
	"github.com/kingabzpro/ECom-Intel/internal/progress"
	"github.com/kingabzpro/ECom-Intel/internal/review"
)

// SearchScraper is the Firecrawl surface the collector needs; *firecrawl.Client
// satisfies it.
type SearchScraper interface {
	Search(ctx context.Context, query string, limit int) ([]firecrawl.SearchResult, error)
	Scrape(ctx context.Context, url string) (firecrawl.ScrapedPage, error)
}

// PageFetcher fetches raw HTML for the direct-scrape fallback;
// *collyfetcher.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Limiter paces outbound scrape calls per target host;
// *ratelimit.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Options tunes collection behavior.
type Options struct {
	// FallbackDirect fetches the product page itself when search finds no
	// review pages.
	FallbackDirect bool
	// Limiter throttles per-host scrape traffic; nil disables pacing.
	Limiter Limiter
}

// ensure Collector implements review.Collector
var _ review.Collector = (*Collector)(nil)

// Collector searches for review pages, scrapes them, and extracts reviews.
type Collector struct {
	scraper SearchScraper
	fetcher PageFetcher
	opts    Options
	emitter progress.Emitter
	clock   review.Clock
	logger  *zap.Logger
}

// New constructs a Collector. fetcher may be nil when FallbackDirect is off;
// emitter may be nil.
func New(scraper SearchScraper, fetcher PageFetcher, opts Options, emitter progress.Emitter, clock review.Clock, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		scraper: scraper,
		fetcher: fetcher,
		opts:    opts,
		emitter: emitter,
		clock:   clock,
		logger:  logger,
	}
}

// Collect gathers reviews for the product, bounded by maxPages review pages.
// Rate-limit and credential errors abort the run; individual page failures
// are logged and skipped.
func (c *Collector) Collect(ctx context.Context, productURL string, maxPages int) ([]review.Review, error) {
	pages, err := c.findReviewPages(ctx, productURL, maxPages)
	if err != nil {
		return nil, err
	}

	if len(pages) == 0 {
		return c.collectDirect(ctx, productURL)
	}

	c.emit(ctx, progress.Event{Stage: progress.StageSearchDone, Pages: int64(len(pages))})

	var all []review.Review
	for _, pageURL := range pages {
		reviews, err := c.scrapePage(ctx, pageURL)
		if err != nil {
			if fatal(err) {
				return nil, err
			}
			c.logger.Warn("skipping review page",
				zap.String("url", pageURL), zap.Error(err))
			continue
		}
		all = append(all, reviews...)
	}

	return dedupe(all), nil
}

// findReviewPages runs the search queries and returns up to maxPages unique
// hit URLs, excluding the product page itself.
func (c *Collector) findReviewPages(ctx context.Context, productURL string, maxPages int) ([]string, error) {
	name := review.ProductNameFromURL(productURL)
	queries := searchQueries(name)

	seen := make(map[string]struct{})
	var pages []string
	for _, query := range queries {
		if len(pages) >= maxPages {
			break
		}
		hits, err := c.scraper.Search(ctx, query, maxPages)
		if err != nil {
			if fatal(err) {
				return nil, err
			}
			c.logger.Warn("search query failed", zap.String("query", query), zap.Error(err))
			continue
		}
		for _, hit := range hits {
			if len(pages) >= maxPages {
				break
			}
			normalized, err := review.NormalizeProductURL(hit.URL)
			if err != nil || normalized == productURL {
				continue
			}
			if _, dup := seen[normalized]; dup {
				continue
			}
			seen[normalized] = struct{}{}
			pages = append(pages, hit.URL)
		}
	}
	return pages, nil
}

// scrapePage fetches one page and extracts reviews, preferring the markdown
// form and falling back to structured HTML.
func (c *Collector) scrapePage(ctx context.Context, pageURL string) ([]review.Review, error) {
	if err := c.wait(ctx, pageURL); err != nil {
		return nil, err
	}
	started := c.clock.Now()
	page, err := c.scraper.Scrape(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	candidates := extractFromMarkdown(page.Markdown)
	if len(candidates) == 0 && page.HTML != "" {
		candidates = extractFromHTML(page.HTML)
	}

	reviews := toReviews(candidates, pageURL)
	c.emit(ctx, progress.Event{
		Stage:   progress.StagePageScraped,
		Site:    hostOf(pageURL),
		URL:     pageURL,
		Pages:   1,
		Reviews: int64(len(reviews)),
		Dur:     c.clock.Now().Sub(started),
	})
	if len(reviews) == 0 {
		c.logger.Debug("page yielded no reviews", zap.String("url", pageURL))
	}
	return reviews, nil
}

// collectDirect scrapes the product page itself: first through the scrape
// API, then over plain HTTP when enabled.
func (c *Collector) collectDirect(ctx context.Context, productURL string) ([]review.Review, error) {
	c.emit(ctx, progress.Event{Stage: progress.StageSearchDone, Pages: 1, Note: "no review pages found, scraping product page"})

	reviews, err := c.scrapePage(ctx, productURL)
	if err == nil && len(reviews) > 0 {
		return dedupe(reviews), nil
	}
	if err != nil && fatal(err) {
		return nil, err
	}

	if !c.opts.FallbackDirect || c.fetcher == nil {
		return dedupe(reviews), err
	}

	if werr := c.wait(ctx, productURL); werr != nil {
		return nil, werr
	}
	body, fetchErr := c.fetcher.Fetch(ctx, productURL)
	if fetchErr != nil {
		if err != nil {
			return nil, review.E(review.KindScrape, fmt.Sprintf("scrape product page %s", productURL), fetchErr)
		}
		c.logger.Warn("direct fetch failed", zap.String("url", productURL), zap.Error(fetchErr))
		return dedupe(reviews), nil
	}
	direct := toReviews(extractFromHTML(string(body)), productURL)
	c.emit(ctx, progress.Event{
		Stage:   progress.StagePageScraped,
		Site:    hostOf(productURL),
		URL:     productURL,
		Pages:   1,
		Reviews: int64(len(direct)),
		Note:    "direct fetch",
	})
	return dedupe(append(reviews, direct...)), nil
}

func (c *Collector) wait(ctx context.Context, target string) error {
	if c.opts.Limiter == nil {
		return nil
	}
	return c.opts.Limiter.Wait(ctx, target)
}

func (c *Collector) emit(ctx context.Context, evt progress.Event) {
	if c.emitter == nil {
		return
	}
	runID, ok := progress.RunIDFrom(ctx)
	if !ok {
		return
	}
	evt.RunID = progress.UUIDToBytes(runID)
	evt.TS = c.clock.Now().UTC()
	c.emitter.Emit(evt)
}

// fatal reports errors that should abort the whole run rather than skip a
// page.
func fatal(err error) bool {
	switch review.KindOf(err) {
	case review.KindRateLimit, review.KindConfig:
		return true
	default:
		return false
	}
}

func searchQueries(productName string) []string {
	if productName == "" {
		return []string{"customer reviews"}
	}
	return []string{
		productName + " reviews",
		productName + " customer reviews",
		productName + " user feedback rating",
	}
}

func toReviews(candidates []extracted, sourceURL string) []review.Review {
	out := make([]review.Review, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, review.Review{
			SourceURL:   sourceURL,
			Text:        cand.text,
			Rating:      cand.rating,
			Reviewer:    cand.reviewer,
			ReviewDate:  cand.date,
			Fingerprint: review.Fingerprint(sourceURL, cand.text),
		})
	}
	return out
}

// dedupe drops reviews whose normalized text already appeared, regardless of
// source page.
func dedupe(reviews []review.Review) []review.Review {
	seen := make(map[string]struct{}, len(reviews))
	out := reviews[:0]
	for _, r := range reviews {
		key := review.NormalizeText(r.Text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

func hostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	return strings.ToLower(parsed.Host)
}
