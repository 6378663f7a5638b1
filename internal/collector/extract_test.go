package collector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleMarkdown = `
# Widget Pro reviews

5 stars - Amazing quality, I love this product and would recommend it to anyone.
Reviewed by John Smith on 12/03/2024.

1 star - Terrible quality, the item broke on delivery and the service was poor.

Navigation: home | products | contact
`

func TestExtractFromMarkdownSplitsOnRatings(t *testing.T) {
	t.Parallel()

	got := extractFromMarkdown(sampleMarkdown)
	require.Len(t, got, 2)

	require.NotNil(t, got[0].rating)
	require.InDelta(t, 5.0, *got[0].rating, 1e-9)
	require.Contains(t, got[0].text, "Amazing quality")
	require.Equal(t, "John Smith", got[0].reviewer)
	require.Equal(t, "12/03/2024", got[0].date)

	require.NotNil(t, got[1].rating)
	require.InDelta(t, 1.0, *got[1].rating, 1e-9)
	require.Contains(t, got[1].text, "Terrible quality")
}

func TestExtractFromMarkdownKeepsTrailingUnratedReview(t *testing.T) {
	t.Parallel()

	content := "Great product overall, good quality for the price and the delivery was quick, definitely recommend this item."
	got := extractFromMarkdown(content)
	require.Len(t, got, 1)
	require.Nil(t, got[0].rating)
}

func TestExtractFromMarkdownIgnoresChrome(t *testing.T) {
	t.Parallel()

	content := "Home\nAbout us\nShipping policy and terms of conditions page\nContact"
	require.Empty(t, extractFromMarkdown(content))
}

func TestExtractFromHTMLFindsReviewElements(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<nav>site navigation with many links</nav>
		<div class="review-item">Rating: 4/5 Good product, works great and the price is fair, would recommend to friends.</div>
		<div class="review-item">Love the quality, excellent service and fast delivery, the item exceeded expectations.</div>
		<div class="review-item">Love the quality, excellent service and fast delivery, the item exceeded expectations.</div>
		<p>unrelated footer text</p>
	</body></html>`

	got := extractFromHTML(html)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].rating)
	require.InDelta(t, 4.0, *got[0].rating, 1e-9)
	require.Nil(t, got[1].rating)
}

func TestNormalizeRatingScales(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 4.5, *normalizeRating("4.5"), 1e-9)
	require.InDelta(t, 4.5, *normalizeRating("90"), 1e-9)  // percentage scale
	require.InDelta(t, 4.0, *normalizeRating("0.8"), 1e-9) // zero-to-one scale
	require.Nil(t, normalizeRating("no digits"))
}

func TestIsLikelyReview(t *testing.T) {
	t.Parallel()

	require.True(t, isLikelyReview("Great product with good quality, I would recommend it to anyone looking"))
	require.False(t, isLikelyReview("Home About Contact"))
	require.False(t, isLikelyReview("great"))
}
