package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kingabzpro/ECom-Intel/internal/review"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store, err := New(filepath.Join(t.TempDir(), "test.db"), clock)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func ratingPtr(v float64) *float64 { return &v }

func TestUpsertProductCreatesAndRefreshes(t *testing.T) {
	t.Parallel()

	store, clock := newTestStore(t)
	ctx := context.Background()

	p1, err := store.UpsertProduct(ctx, "https://shop.example/widget", "Widget")
	require.NoError(t, err)
	require.NotZero(t, p1.ID)
	require.Equal(t, "Widget", p1.Name)

	clock.advance(time.Hour)

	p2, err := store.UpsertProduct(ctx, "https://shop.example/widget", "Widget Pro")
	require.NoError(t, err)
	require.Equal(t, p1.ID, p2.ID)
	require.Equal(t, "Widget Pro", p2.Name)
	require.True(t, p2.UpdatedAt.After(p1.UpdatedAt))
	require.Equal(t, p1.CreatedAt, p2.CreatedAt)

	// An empty name on re-scrape keeps the stored one.
	p3, err := store.UpsertProduct(ctx, "https://shop.example/widget", "")
	require.NoError(t, err)
	require.Equal(t, "Widget Pro", p3.Name)
}

func TestGetProductNotFound(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	_, err := store.GetProduct(context.Background(), "https://shop.example/missing")
	require.ErrorIs(t, err, review.ErrNotFound)
}

func TestSaveReviewsDeduplicatesByFingerprint(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()

	p, err := store.UpsertProduct(ctx, "https://shop.example/widget", "Widget")
	require.NoError(t, err)

	batch := []review.Review{
		{
			SourceURL:   "https://reviews.example/a",
			Text:        "Great product, works well.",
			Rating:      ratingPtr(5),
			Reviewer:    "alice",
			Fingerprint: review.Fingerprint("https://reviews.example/a", "Great product, works well."),
		},
		{
			SourceURL:   "https://reviews.example/a",
			Text:        "Broke after a week.",
			Rating:      ratingPtr(1),
			Fingerprint: review.Fingerprint("https://reviews.example/a", "Broke after a week."),
		},
	}

	inserted, err := store.SaveReviews(ctx, p.ID, batch)
	require.NoError(t, err)
	require.Equal(t, 2, inserted)

	// Same batch again: every row is a duplicate.
	inserted, err = store.SaveReviews(ctx, p.ID, batch)
	require.NoError(t, err)
	require.Equal(t, 0, inserted)

	// One new row mixed with one duplicate.
	batch = append(batch, review.Review{
		SourceURL:   "https://reviews.example/b",
		Text:        "Decent for the price.",
		Fingerprint: review.Fingerprint("https://reviews.example/b", "Decent for the price."),
	})
	inserted, err = store.SaveReviews(ctx, p.ID, batch)
	require.NoError(t, err)
	require.Equal(t, 1, inserted)

	got, err := store.GetReviews(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
}

func TestGetReviewsPreservesNilRating(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := context.Background()

	p, err := store.UpsertProduct(ctx, "https://shop.example/widget", "Widget")
	require.NoError(t, err)

	_, err = store.SaveReviews(ctx, p.ID, []review.Review{{
		SourceURL:   "https://reviews.example/a",
		Text:        "No stars given but loved it.",
		Fingerprint: review.Fingerprint("https://reviews.example/a", "No stars given but loved it."),
	}})
	require.NoError(t, err)

	got, err := store.GetReviews(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Nil(t, got[0].Rating)
}

func TestSaveAnalysisAppendsHistory(t *testing.T) {
	t.Parallel()

	store, clock := newTestStore(t)
	ctx := context.Background()

	p, err := store.UpsertProduct(ctx, "https://shop.example/widget", "Widget")
	require.NoError(t, err)

	_, err = store.LatestAnalysis(ctx, p.ID)
	require.ErrorIs(t, err, review.ErrNotFound)

	first, err := store.SaveAnalysis(ctx, p.ID, review.AnalysisResult{
		Sentiment:     review.SentimentCounts{Positive: 3, Negative: 1, Neutral: 1},
		KeyInsights:   []string{"battery life praised"},
		Pros:          []string{"fast", "cheap"},
		Cons:          []string{"fragile"},
		Stars:         [5]int{1, 0, 1, 1, 2},
		TotalReviews:  5,
		AverageRating: 3.8,
	})
	require.NoError(t, err)
	require.NotZero(t, first.ID)
	require.Equal(t, p.ID, first.ProductID)

	clock.advance(time.Hour)

	second, err := store.SaveAnalysis(ctx, p.ID, review.AnalysisResult{
		Sentiment:     review.SentimentCounts{Positive: 6, Negative: 1, Neutral: 1},
		Stars:         [5]int{1, 0, 1, 2, 4},
		TotalReviews:  8,
		AverageRating: 4.2,
	})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	latest, err := store.LatestAnalysis(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)
	require.Equal(t, 8, latest.TotalReviews)
	require.Equal(t, review.SentimentCounts{Positive: 6, Negative: 1, Neutral: 1}, latest.Sentiment)
	require.Equal(t, [5]int{1, 0, 1, 2, 4}, latest.Stars)
	require.Empty(t, latest.Pros)

	// The earlier row survives as history.
	var count int
	require.NoError(t, store.db.QueryRow(
		`SELECT COUNT(*) FROM analyses WHERE product_id = ?`, p.ID).Scan(&count))
	require.Equal(t, 2, count)
}

func TestRecentProductsOrdersByLastAnalyzed(t *testing.T) {
	t.Parallel()

	store, clock := newTestStore(t)
	ctx := context.Background()

	a, err := store.UpsertProduct(ctx, "https://shop.example/widget-a", "Widget A")
	require.NoError(t, err)
	b, err := store.UpsertProduct(ctx, "https://shop.example/widget-b", "Widget B")
	require.NoError(t, err)
	// Never analyzed; must not appear.
	_, err = store.UpsertProduct(ctx, "https://shop.example/widget-c", "Widget C")
	require.NoError(t, err)

	_, err = store.SaveAnalysis(ctx, a.ID, review.AnalysisResult{TotalReviews: 2, AverageRating: 3.0})
	require.NoError(t, err)
	clock.advance(time.Hour)
	_, err = store.SaveAnalysis(ctx, b.ID, review.AnalysisResult{TotalReviews: 4, AverageRating: 4.5})
	require.NoError(t, err)
	clock.advance(time.Hour)
	// Re-analysis bumps A back to the top with its latest stats.
	_, err = store.SaveAnalysis(ctx, a.ID, review.AnalysisResult{TotalReviews: 7, AverageRating: 3.5})
	require.NoError(t, err)

	recent, err := store.RecentProducts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, a.ID, recent[0].Product.ID)
	require.Equal(t, 7, recent[0].TotalReviews)
	require.InDelta(t, 3.5, recent[0].AverageRating, 1e-9)
	require.Equal(t, b.ID, recent[1].Product.ID)

	limited, err := store.RecentProducts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, a.ID, limited[0].Product.ID)
}
