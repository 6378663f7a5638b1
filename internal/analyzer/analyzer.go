// Package analyzer turns a review snapshot into a structured analysis by
// batching reviews through a JSON-mode LLM call and merging the per-batch
// responses.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kingabzpro/ECom-Intel/internal/progress"
	"github.com/kingabzpro/ECom-Intel/internal/review"
)

// LLM is the JSON-mode chat surface the analyzer needs; *openai.Client
// satisfies it.
type LLM interface {
	ChatJSON(ctx context.Context, system, user string) (json.RawMessage, error)
}

// ensure Analyzer implements review.Analyzer
var _ review.Analyzer = (*Analyzer)(nil)

// Analyzer batches reviews under a character budget and merges the
// structured responses.
type Analyzer struct {
	llm           LLM
	maxBatchChars int
	emitter       progress.Emitter
	clock         review.Clock
	logger        *zap.Logger
}

// New constructs an Analyzer. maxBatchChars bounds the review text included
// in a single LLM call; emitter may be nil.
func New(llm LLM, maxBatchChars int, emitter progress.Emitter, clock review.Clock, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		llm:           llm,
		maxBatchChars: maxBatchChars,
		emitter:       emitter,
		clock:         clock,
		logger:        logger,
	}
}

const systemPrompt = `You are a product review analyst. You receive a numbered list of customer reviews and respond with a single JSON object, nothing else, using exactly these keys:
{
  "positive": <number of reviews with positive sentiment>,
  "negative": <number of reviews with negative sentiment>,
  "neutral": <number of reviews with neutral or mixed sentiment>,
  "key_insights": [<up to 5 short strings, the most important takeaways>],
  "pros": [<up to 5 short strings, strengths customers mention>],
  "cons": [<up to 5 short strings, complaints customers mention>],
  "themes": [<up to 5 short strings, recurring topics>],
  "recommendations": [<up to 3 short strings, suggested improvements>]
}
Every review must be counted in exactly one sentiment bucket. When a review carries a star rating, weigh it together with the text.`

type batchResponse struct {
	Positive        int      `json:"positive"`
	Negative        int      `json:"negative"`
	Neutral         int      `json:"neutral"`
	KeyInsights     []string `json:"key_insights"`
	Pros            []string `json:"pros"`
	Cons            []string `json:"cons"`
	Themes          []string `json:"themes"`
	Recommendations []string `json:"recommendations"`
}

// Analyze runs the batched LLM analysis over the full review set.
func (a *Analyzer) Analyze(ctx context.Context, reviews []review.Review) (review.AnalysisResult, error) {
	if len(reviews) == 0 {
		return review.AnalysisResult{}, review.E(review.KindAnalysis, "no reviews to analyze", nil)
	}

	result := review.AnalysisResult{TotalReviews: len(reviews)}
	result.Stars, result.AverageRating = ratingSummary(reviews)

	for _, batch := range splitBatches(reviews, a.maxBatchChars) {
		resp, err := a.analyzeBatch(ctx, batch)
		if err != nil {
			return review.AnalysisResult{}, err
		}
		result.Sentiment = result.Sentiment.Add(review.SentimentCounts{
			Positive: resp.Positive,
			Negative: resp.Negative,
			Neutral:  resp.Neutral,
		})
		result.KeyInsights = mergeLists(result.KeyInsights, resp.KeyInsights)
		result.Pros = mergeLists(result.Pros, resp.Pros)
		result.Cons = mergeLists(result.Cons, resp.Cons)
		result.Themes = mergeLists(result.Themes, resp.Themes)
		result.Recommendations = mergeLists(result.Recommendations, resp.Recommendations)
	}

	return result, nil
}

func (a *Analyzer) analyzeBatch(ctx context.Context, batch []review.Review) (batchResponse, error) {
	started := a.clock.Now()

	raw, err := a.llm.ChatJSON(ctx, systemPrompt, renderBatch(batch))
	if err != nil {
		return batchResponse{}, err
	}

	var resp batchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return batchResponse{}, review.E(review.KindAnalysis, "decode analysis response", err)
	}
	if resp.Positive < 0 || resp.Negative < 0 || resp.Neutral < 0 {
		return batchResponse{}, review.E(review.KindAnalysis, "analysis returned negative sentiment counts", nil)
	}
	if got := resp.Positive + resp.Negative + resp.Neutral; got != len(batch) {
		return batchResponse{}, review.E(review.KindAnalysis,
			fmt.Sprintf("analysis counted %d reviews, expected %d", got, len(batch)), nil)
	}

	a.emit(ctx, len(batch), a.clock.Now().Sub(started))
	return resp, nil
}

func (a *Analyzer) emit(ctx context.Context, reviews int, dur time.Duration) {
	if a.emitter == nil {
		return
	}
	runID, ok := progress.RunIDFrom(ctx)
	if !ok {
		return
	}
	a.emitter.Emit(progress.Event{
		RunID:   progress.UUIDToBytes(runID),
		TS:      a.clock.Now().UTC(),
		Stage:   progress.StageAnalyzeBatch,
		Reviews: int64(reviews),
		Dur:     dur,
	})
}

// splitBatches greedily packs reviews until the character budget is hit. A
// single oversized review still forms its own batch rather than being
// dropped.
func splitBatches(reviews []review.Review, maxChars int) [][]review.Review {
	if maxChars <= 0 {
		return [][]review.Review{reviews}
	}
	var batches [][]review.Review
	var current []review.Review
	chars := 0
	for _, r := range reviews {
		n := len(r.Text)
		if len(current) > 0 && chars+n > maxChars {
			batches = append(batches, current)
			current = nil
			chars = 0
		}
		current = append(current, r)
		chars += n
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func renderBatch(batch []review.Review) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze these %d customer reviews:\n\n", len(batch))
	for i, r := range batch {
		fmt.Fprintf(&b, "%d. ", i+1)
		if r.Rating != nil {
			fmt.Fprintf(&b, "[%.1f stars] ", *r.Rating)
		}
		b.WriteString(r.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// mergeLists appends items not already present, comparing exact text.
func mergeLists(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, item := range existing {
		seen[item] = struct{}{}
	}
	for _, item := range incoming {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		existing = append(existing, item)
	}
	return existing
}

// ratingSummary buckets rated reviews by star and averages their ratings.
// Ratings are clamped to the 1-5 scale before bucketing.
func ratingSummary(reviews []review.Review) ([5]int, float64) {
	var stars [5]int
	var sum float64
	rated := 0
	for _, r := range reviews {
		if r.Rating == nil {
			continue
		}
		v := math.Min(5, math.Max(1, *r.Rating))
		stars[int(math.Round(v))-1]++
		sum += v
		rated++
	}
	if rated == 0 {
		return stars, 0
	}
	return stars, math.Round(sum/float64(rated)*10) / 10
}
