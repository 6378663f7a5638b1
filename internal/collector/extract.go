package collector

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// minReviewChars keeps navigation fragments and star-only lines out of the
// review set.
const minReviewChars = 20

// extracted is a review candidate before product and fingerprint assignment.
type extracted struct {
	text     string
	rating   *float64
	reviewer string
	date     string
}

var ratingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(\d+(?:\.\d+)?)\s*stars?\b[:\s-]*(.*)`),
	regexp.MustCompile(`(?i)^rating[:\s]+(\d+(?:\.\d+)?)[\s\S]*?[:\s-]*(.*)`),
	regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*/\s*5\b[:\s-]*(.*)`),
}

var (
	reviewerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[Bb]y\s+([A-Z][a-z]+\s+[A-Z][a-z]+)`),
		regexp.MustCompile(`-\s*([A-Z][a-z]+\s+[A-Z][a-z]+)`),
		regexp.MustCompile(`([A-Z][a-z]+\s+[A-Z][a-z]+)\s+said`),
	}
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`),
		regexp.MustCompile(`\d{1,2}-\d{1,2}-\d{4}`),
		regexp.MustCompile(`(?i)(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}`),
		regexp.MustCompile(`(?i)\d{1,2}\s+(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4}`),
	}
	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// reviewIndicators are words that suggest a line is customer feedback rather
// than page chrome.
var reviewIndicators = []string{
	"great", "good", "bad", "excellent", "poor", "love", "hate",
	"recommend", "quality", "price", "service", "delivery",
	"package", "product", "item", "worked", "didn't work",
}

// extractFromMarkdown walks the page line by line, using rating markers as
// review boundaries. Trailing text that reads like a review is kept even
// without a rating.
func extractFromMarkdown(content string) []extracted {
	var (
		out     []extracted
		current strings.Builder
		rating  *float64
	)

	flush := func() {
		text := strings.TrimSpace(current.String())
		current.Reset()
		if len(text) < minReviewChars {
			rating = nil
			return
		}
		if rating == nil && !isLikelyReview(text) {
			return
		}
		out = append(out, extracted{
			text:     text,
			rating:   rating,
			reviewer: extractReviewer(text),
			date:     extractDate(text),
		})
		rating = nil
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 10 {
			continue
		}

		if value, rest, ok := matchRating(line); ok {
			flush()
			rating = normalizeRating(value)
			if rest != "" {
				current.WriteString(rest)
			} else {
				current.WriteString(line)
			}
			continue
		}

		if current.Len() > 0 {
			current.WriteString(" ")
			current.WriteString(line)
		} else if isLikelyReview(line) {
			current.WriteString(line)
		}
	}
	flush()

	return out
}

// extractFromHTML pulls review-shaped elements out of raw HTML. It covers
// the structured markup the markdown pass flattens away.
func extractFromHTML(html string) []extracted {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []extracted
	seen := make(map[string]struct{})
	doc.Find(`[class*="review"], [itemprop="review"], [data-hook="review"]`).Each(func(_ int, sel *goquery.Selection) {
		// Skip wrappers whose children will be visited anyway.
		if sel.Find(`[class*="review"]`).Length() > 0 {
			return
		}
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if len(text) < minReviewChars || !isLikelyReview(text) {
			return
		}
		if _, dup := seen[text]; dup {
			return
		}
		seen[text] = struct{}{}

		var rating *float64
		if value, _, ok := matchRating(text); ok {
			rating = normalizeRating(value)
		}
		out = append(out, extracted{
			text:     text,
			rating:   rating,
			reviewer: extractReviewer(text),
			date:     extractDate(text),
		})
	})
	return out
}

func matchRating(line string) (value, rest string, ok bool) {
	for _, pattern := range ratingPatterns {
		if m := pattern.FindStringSubmatch(line); m != nil {
			rest = ""
			if len(m) > 2 {
				rest = strings.TrimSpace(m[2])
			}
			return m[1], rest, true
		}
	}
	return "", "", false
}

// normalizeRating maps ratings onto the 1-5 scale: percentages are divided
// by 20, zero-to-one scores multiplied by 5, and the result clamped.
func normalizeRating(raw string) *float64 {
	m := numberPattern.FindString(raw)
	if m == "" {
		return nil
	}
	value, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	switch {
	case value > 5:
		value /= 20
	case value < 1:
		value *= 5
	}
	if value < 1 {
		value = 1
	}
	if value > 5 {
		value = 5
	}
	return &value
}

func extractReviewer(text string) string {
	for _, pattern := range reviewerPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

func extractDate(text string) string {
	for _, pattern := range datePatterns {
		if m := pattern.FindString(text); m != "" {
			return m
		}
	}
	return ""
}

// isLikelyReview scores a line by feedback vocabulary and length.
func isLikelyReview(text string) bool {
	lower := strings.ToLower(text)
	indicators := 0
	for _, word := range reviewIndicators {
		if strings.Contains(lower, word) {
			indicators++
		}
	}
	words := len(strings.Fields(text))
	return (indicators >= 2 && words >= 10) || (indicators >= 1 && words >= 20)
}
