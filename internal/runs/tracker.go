// Package runs tracks in-flight and completed analysis runs in memory so
// the API can serve status polls without touching the durable store.
package runs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kingabzpro/ECom-Intel/internal/review"
)

// State is the lifecycle phase of a run.
type State string

// Run lifecycle states, in order of progression.
const (
	StateQueued        State = "queued"
	StateCheckingCache State = "checking_cache"
	StateScraping      State = "scraping"
	StateAnalyzing     State = "analyzing"
	StatePersisting    State = "persisting"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Terminal reports whether the state ends the run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Run is one tracked analysis request. Counter fields are fed by the
// progress stream; lifecycle fields are owned by the orchestrator.
type Run struct {
	ID           uuid.UUID              `json:"run_id"`
	ProductURL   string                 `json:"product_url"`
	MaxPages     int                    `json:"max_pages"`
	ForceRefresh bool                   `json:"force_refresh"`
	State        State                  `json:"state"`
	FromCache    bool                   `json:"from_cache"`
	TotalPages   int                    `json:"total_pages"`
	PagesScraped int                    `json:"pages_scraped"`
	Reviews      int                    `json:"reviews_collected"`
	NewReviews   int                    `json:"new_reviews"`
	ErrKind      review.Kind            `json:"error_kind,omitempty"`
	ErrMessage   string                 `json:"error_message,omitempty"`
	Started      time.Time              `json:"started_at"`
	Finished     *time.Time             `json:"finished_at,omitempty"`
	Result       *review.AnalysisResult `json:"-"`
}

// Tracker is an in-memory run registry safe for concurrent use.
type Tracker struct {
	mu    sync.RWMutex
	runs  map[uuid.UUID]Run
	clock review.Clock
}

// NewTracker constructs an empty Tracker.
func NewTracker(clock review.Clock) *Tracker {
	return &Tracker{
		runs:  make(map[uuid.UUID]Run),
		clock: clock,
	}
}

// Create registers a new run in the queued state.
func (t *Tracker) Create(_ context.Context, id uuid.UUID, productURL string, maxPages int, forceRefresh bool) (Run, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.runs[id]; exists {
		return Run{}, review.E(review.KindStore, "run already exists", nil)
	}
	run := Run{
		ID:           id,
		ProductURL:   productURL,
		MaxPages:     maxPages,
		ForceRefresh: forceRefresh,
		State:        StateQueued,
		Started:      t.clock.Now().UTC(),
	}
	t.runs[id] = run
	return run, nil
}

// Get fetches a run by ID, returning review.ErrNotFound when unknown.
func (t *Tracker) Get(_ context.Context, id uuid.UUID) (Run, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	run, ok := t.runs[id]
	if !ok {
		return Run{}, review.ErrNotFound
	}
	return run, nil
}

// SetState advances the run's lifecycle phase. Terminal runs are left alone
// so a late transition cannot resurrect a finished run.
func (t *Tracker) SetState(_ context.Context, id uuid.UUID, state State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	run, ok := t.runs[id]
	if !ok {
		return review.ErrNotFound
	}
	if run.State.Terminal() {
		return nil
	}
	run.State = state
	t.runs[id] = run
	return nil
}

// Complete marks the run done and attaches the final analysis.
func (t *Tracker) Complete(_ context.Context, id uuid.UUID, result review.AnalysisResult, fromCache bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	run, ok := t.runs[id]
	if !ok {
		return review.ErrNotFound
	}
	run.State = StateDone
	run.FromCache = fromCache
	run.Result = &result
	now := t.clock.Now().UTC()
	run.Finished = &now
	t.runs[id] = run
	return nil
}

// Fail marks the run failed, classifying the error for API consumers.
func (t *Tracker) Fail(_ context.Context, id uuid.UUID, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	run, ok := t.runs[id]
	if !ok {
		return review.ErrNotFound
	}
	run.State = StateFailed
	run.ErrKind = review.KindOf(cause)
	run.ErrMessage = review.UserMessage(cause)
	now := t.clock.Now().UTC()
	run.Finished = &now
	t.runs[id] = run
	return nil
}

// SetTotalPages records how many pages the run expects to scrape.
func (t *Tracker) SetTotalPages(_ context.Context, id uuid.UUID, total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	run, ok := t.runs[id]
	if !ok {
		return review.ErrNotFound
	}
	run.TotalPages = total
	t.runs[id] = run
	return nil
}

// AddProgress applies counter deltas from the progress stream.
func (t *Tracker) AddProgress(_ context.Context, id uuid.UUID, pages, reviews, newReviews int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	run, ok := t.runs[id]
	if !ok {
		return review.ErrNotFound
	}
	run.PagesScraped += pages
	run.Reviews += reviews
	run.NewReviews += newReviews
	t.runs[id] = run
	return nil
}
