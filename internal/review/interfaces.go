package review

import (
	"context"
	"time"
)

// Store persists products, reviews, and analysis history. All operations hit
// the durable store; implementations surface storage faults as KindStore
// errors rather than degrading to empty results.
type Store interface {
	// GetProduct looks up a product by normalized URL, returning ErrNotFound
	// when no row exists.
	GetProduct(ctx context.Context, url string) (Product, error)
	// UpsertProduct creates the product row on first sight, or refreshes its
	// name and updated_at timestamp on subsequent scrapes.
	UpsertProduct(ctx context.Context, url, name string) (Product, error)
	// GetReviews returns all reviews for a product, newest first.
	GetReviews(ctx context.Context, productID int64) ([]Review, error)
	// LatestAnalysis returns the most recent analysis row or ErrNotFound.
	LatestAnalysis(ctx context.Context, productID int64) (AnalysisResult, error)
	// SaveReviews inserts reviews not already present per the fingerprint
	// uniqueness invariant and reports how many rows were newly inserted.
	SaveReviews(ctx context.Context, productID int64, reviews []Review) (int, error)
	// SaveAnalysis appends a new analysis row; prior history is never
	// overwritten.
	SaveAnalysis(ctx context.Context, productID int64, result AnalysisResult) (AnalysisResult, error)
	// RecentProducts lists the most recently analyzed products for the
	// dashboard history view.
	RecentProducts(ctx context.Context, limit int) ([]ProductSummary, error)
	Close() error
}

// Collector gathers net-new deduplicated reviews for a product URL, bounded
// by maxPages result pages.
type Collector interface {
	Collect(ctx context.Context, productURL string, maxPages int) ([]Review, error)
}

// Analyzer derives a structured AnalysisResult from a review snapshot.
type Analyzer interface {
	Analyze(ctx context.Context, reviews []Review) (AnalysisResult, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
