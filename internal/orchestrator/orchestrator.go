// Package orchestrator drives the analysis pipeline: cache check, review
// collection, LLM analysis, and persistence, with run state tracked for
// status polling.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingabzpro/ECom-Intel/internal/progress"
	"github.com/kingabzpro/ECom-Intel/internal/review"
	"github.com/kingabzpro/ECom-Intel/internal/runs"
)

// IDSource mints run IDs; the uuid generator satisfies it.
type IDSource interface {
	NewRawID() (uuid.UUID, error)
}

// Request describes one analysis invocation.
type Request struct {
	ProductURL   string
	MaxPages     int
	ForceRefresh bool
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	store     review.Store
	collector review.Collector
	analyzer  review.Analyzer
	tracker   *runs.Tracker
	emitter   progress.Emitter
	ids       IDSource
	clock     review.Clock
	logger    *zap.Logger

	// runTimeout bounds detached background runs.
	runTimeout time.Duration
}

// New constructs an Orchestrator. emitter may be nil.
func New(
	store review.Store,
	collector review.Collector,
	analyzer review.Analyzer,
	tracker *runs.Tracker,
	emitter progress.Emitter,
	ids IDSource,
	clock review.Clock,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:      store,
		collector:  collector,
		analyzer:   analyzer,
		tracker:    tracker,
		emitter:    emitter,
		ids:        ids,
		clock:      clock,
		logger:     logger,
		runTimeout: 10 * time.Minute,
	}
}

// Start registers a run and executes the pipeline on a background goroutine,
// detached from the caller's context. The returned run is in the queued
// state; poll the tracker for progress.
func (o *Orchestrator) Start(ctx context.Context, req Request) (runs.Run, error) {
	run, err := o.register(ctx, req)
	if err != nil {
		return runs.Run{}, err
	}

	go func() {
		bg, cancel := context.WithTimeout(context.Background(), o.runTimeout)
		defer cancel()
		if _, err := o.execute(bg, run.ID, req); err != nil {
			o.logger.Warn("analysis run failed",
				zap.String("run_id", run.ID.String()),
				zap.String("product_url", req.ProductURL),
				zap.Error(err))
		}
	}()

	return run, nil
}

// Execute registers a run and drives the pipeline synchronously, returning
// the finished run. Used by the CLI.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (runs.Run, error) {
	run, err := o.register(ctx, req)
	if err != nil {
		return runs.Run{}, err
	}
	if _, err := o.execute(ctx, run.ID, req); err != nil {
		final, getErr := o.tracker.Get(ctx, run.ID)
		if getErr != nil {
			return runs.Run{}, err
		}
		return final, err
	}
	return o.tracker.Get(ctx, run.ID)
}

func (o *Orchestrator) register(ctx context.Context, req Request) (runs.Run, error) {
	normalized, err := review.NormalizeProductURL(req.ProductURL)
	if err != nil {
		return runs.Run{}, fmt.Errorf("invalid product url: %w", err)
	}
	id, err := o.ids.NewRawID()
	if err != nil {
		return runs.Run{}, fmt.Errorf("mint run id: %w", err)
	}
	return o.tracker.Create(ctx, id, normalized, req.MaxPages, req.ForceRefresh)
}

func (o *Orchestrator) execute(ctx context.Context, runID uuid.UUID, req Request) (review.AnalysisResult, error) {
	started := o.clock.Now()
	ctx = progress.WithRunID(ctx, runID)
	o.emit(runID, progress.Event{Stage: progress.StageRunStart})

	run, err := o.tracker.Get(ctx, runID)
	if err != nil {
		return review.AnalysisResult{}, err
	}

	result, fromCache, err := o.pipeline(ctx, runID, run.ProductURL, run.MaxPages, run.ForceRefresh)
	if err != nil {
		if failErr := o.tracker.Fail(ctx, runID, err); failErr != nil {
			o.logger.Warn("mark run failed", zap.Error(failErr))
		}
		o.emit(runID, progress.Event{
			Stage: progress.StageRunError,
			Dur:   o.clock.Now().Sub(started),
			Note:  err.Error(),
		})
		return review.AnalysisResult{}, err
	}

	if err := o.tracker.Complete(ctx, runID, result, fromCache); err != nil {
		o.logger.Warn("mark run complete", zap.Error(err))
	}
	o.emit(runID, progress.Event{
		Stage: progress.StageRunDone,
		Dur:   o.clock.Now().Sub(started),
	})
	return result, nil
}

func (o *Orchestrator) pipeline(ctx context.Context, runID uuid.UUID, productURL string, maxPages int, forceRefresh bool) (review.AnalysisResult, bool, error) {
	// Cache check: a prior analysis short-circuits the run unless the
	// caller asked for a refresh.
	if err := o.tracker.SetState(ctx, runID, runs.StateCheckingCache); err != nil {
		return review.AnalysisResult{}, false, err
	}
	if !forceRefresh {
		if cached, ok, err := o.cachedAnalysis(ctx, productURL); err != nil {
			return review.AnalysisResult{}, false, err
		} else if ok {
			o.emit(runID, progress.Event{Stage: progress.StageCacheHit})
			return cached, true, nil
		}
	}

	// Scrape.
	if err := o.tracker.SetState(ctx, runID, runs.StateScraping); err != nil {
		return review.AnalysisResult{}, false, err
	}
	collected, err := o.collector.Collect(ctx, productURL, maxPages)
	if err != nil {
		return review.AnalysisResult{}, false, err
	}

	product, err := o.store.UpsertProduct(ctx, productURL, review.ProductNameFromURL(productURL))
	if err != nil {
		return review.AnalysisResult{}, false, err
	}
	inserted, err := o.store.SaveReviews(ctx, product.ID, collected)
	if err != nil {
		return review.AnalysisResult{}, false, err
	}
	o.emit(runID, progress.Event{Stage: progress.StagePersisted, NewReviews: int64(inserted)})

	allReviews, err := o.store.GetReviews(ctx, product.ID)
	if err != nil {
		return review.AnalysisResult{}, false, err
	}
	if len(allReviews) == 0 {
		return review.AnalysisResult{}, false, review.E(review.KindNoReviews,
			fmt.Sprintf("no reviews found for %s", productURL), nil)
	}

	// Analyze the full stored snapshot, not just this run's finds.
	if err := o.tracker.SetState(ctx, runID, runs.StateAnalyzing); err != nil {
		return review.AnalysisResult{}, false, err
	}
	result, err := o.analyzer.Analyze(ctx, allReviews)
	if err != nil {
		return review.AnalysisResult{}, false, err
	}

	// Persist.
	if err := o.tracker.SetState(ctx, runID, runs.StatePersisting); err != nil {
		return review.AnalysisResult{}, false, err
	}
	saved, err := o.store.SaveAnalysis(ctx, product.ID, result)
	if err != nil {
		return review.AnalysisResult{}, false, err
	}
	return saved, false, nil
}

// cachedAnalysis returns the latest stored analysis for a known product.
func (o *Orchestrator) cachedAnalysis(ctx context.Context, productURL string) (review.AnalysisResult, bool, error) {
	product, err := o.store.GetProduct(ctx, productURL)
	if errors.Is(err, review.ErrNotFound) {
		return review.AnalysisResult{}, false, nil
	}
	if err != nil {
		return review.AnalysisResult{}, false, err
	}
	cached, err := o.store.LatestAnalysis(ctx, product.ID)
	if errors.Is(err, review.ErrNotFound) {
		return review.AnalysisResult{}, false, nil
	}
	if err != nil {
		return review.AnalysisResult{}, false, err
	}
	return cached, true, nil
}

func (o *Orchestrator) emit(runID uuid.UUID, evt progress.Event) {
	if o.emitter == nil {
		return
	}
	evt.RunID = progress.UUIDToBytes(runID)
	evt.TS = o.clock.Now().UTC()
	o.emitter.Emit(evt)
}
