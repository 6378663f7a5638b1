package review

import (
	"time"
)

// Product is the subject of analysis, identified by its normalized URL.
type Product struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Review is a single piece of raw customer feedback tied to a Product.
// Rating is nil when the source text carried no parseable rating; the
// analyzer infers sentiment from text alone in that case.
type Review struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id"`
	SourceURL   string    `json:"source_url"`
	Text        string    `json:"text"`
	Rating      *float64  `json:"rating,omitempty"`
	Reviewer    string    `json:"reviewer,omitempty"`
	ReviewDate  string    `json:"review_date,omitempty"`
	Fingerprint string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// SentimentCounts tallies reviews per sentiment label.
type SentimentCounts struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// Total returns the number of reviews covered by the tally.
func (s SentimentCounts) Total() int {
	return s.Positive + s.Negative + s.Neutral
}

// Add sums another tally into the receiver.
func (s SentimentCounts) Add(other SentimentCounts) SentimentCounts {
	return SentimentCounts{
		Positive: s.Positive + other.Positive,
		Negative: s.Negative + other.Negative,
		Neutral:  s.Neutral + other.Neutral,
	}
}

// AnalysisResult is the structured output computed from a snapshot of a
// product's review set. Rows are append-only; later runs supersede earlier
// ones without deleting them.
type AnalysisResult struct {
	ID              int64           `json:"id"`
	ProductID       int64           `json:"product_id"`
	Sentiment       SentimentCounts `json:"sentiment"`
	KeyInsights     []string        `json:"key_insights"`
	Pros            []string        `json:"pros"`
	Cons            []string        `json:"cons"`
	Themes          []string        `json:"themes"`
	Recommendations []string        `json:"recommendations"`
	// Stars counts rated reviews per star bucket, index 0 holding 1-star.
	// Reviews without a rating are not counted here.
	Stars           [5]int          `json:"star_counts"`
	TotalReviews    int             `json:"total_reviews"`
	AverageRating   float64         `json:"average_rating"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ProductSummary is the list view returned for the dashboard history.
type ProductSummary struct {
	Product       Product   `json:"product"`
	TotalReviews  int       `json:"total_reviews"`
	AverageRating float64   `json:"average_rating"`
	LastAnalyzed  time.Time `json:"last_analyzed,omitempty"`
}
