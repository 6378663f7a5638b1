package sinks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingabzpro/ECom-Intel/internal/progress"
)

// RunProgress applies streamed counter deltas to tracked runs. The run
// lifecycle (state transitions, final result) is owned by the orchestrator;
// this interface only covers the live counters the event stream feeds.
type RunProgress interface {
	SetTotalPages(ctx context.Context, runID uuid.UUID, total int) error
	AddProgress(ctx context.Context, runID uuid.UUID, pages, reviews, newReviews int) error
}

// RunSink mirrors progress counters into the run tracker so status polls see
// live page and review counts. It collapses per-run deltas per batch to keep
// tracker churn low.
type RunSink struct {
	runs   RunProgress
	logger *zap.Logger
}

// NewRunSink constructs a RunSink over the provided tracker.
func NewRunSink(runs RunProgress, logger *zap.Logger) *RunSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunSink{runs: runs, logger: logger}
}

type runDelta struct {
	totalPages int
	haveTotal  bool
	pages      int
	reviews    int
	newReviews int
}

// Consume collapses counter deltas per run and forwards them to the tracker.
func (s *RunSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.runs == nil {
		return nil
	}

	deltas := make(map[uuid.UUID]*runDelta)
	order := make([]uuid.UUID, 0, 4)

	for _, evt := range batch {
		id := evt.RunUUID()
		delta := deltas[id]
		if delta == nil {
			delta = &runDelta{}
			deltas[id] = delta
			order = append(order, id)
		}
		switch evt.Stage {
		case progress.StageSearchDone:
			delta.totalPages = int(evt.Pages)
			delta.haveTotal = true
		case progress.StagePageScraped:
			delta.pages += int(evt.Pages)
			delta.reviews += int(evt.Reviews)
		case progress.StagePersisted:
			delta.newReviews += int(evt.NewReviews)
		}
	}

	for _, id := range order {
		delta := deltas[id]
		if delta.haveTotal {
			if err := s.runs.SetTotalPages(ctx, id, delta.totalPages); err != nil {
				return fmt.Errorf("set total pages: %w", err)
			}
		}
		if delta.pages == 0 && delta.reviews == 0 && delta.newReviews == 0 {
			continue
		}
		if err := s.runs.AddProgress(ctx, id, delta.pages, delta.reviews, delta.newReviews); err != nil {
			return fmt.Errorf("add run progress: %w", err)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *RunSink) Close(context.Context) error {
	return nil
}
