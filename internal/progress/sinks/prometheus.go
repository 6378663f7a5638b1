package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kingabzpro/ECom-Intel/internal/progress"
)

// PrometheusSink exports analysis-run progress metrics. It owns all
// collectors for runs started/completed/running and per-site scrape
// counters.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runDuration   *prometheus.HistogramVec
	cacheHits     prometheus.Counter

	pagesScraped     *prometheus.CounterVec
	reviewsCollected *prometheus.CounterVec
	reviewsPersisted prometheus.Counter

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewintel_runs_started_total",
			Help: "Total analysis runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewintel_runs_completed_total",
			Help: "Total analysis runs completed partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reviewintel_runs_running",
			Help: "Current number of in-flight analysis runs.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reviewintel_run_duration_seconds",
			Help:    "Wall time per completed analysis run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"result"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewintel_cache_hits_total",
			Help: "Runs served from the cached analysis without re-scraping.",
		}),
		pagesScraped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewintel_pages_scraped_total",
			Help: "Pages scraped partitioned by source site.",
		}, []string{"site"}),
		reviewsCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewintel_reviews_collected_total",
			Help: "Reviews extracted from scraped pages per source site.",
		}, []string{"site"}),
		reviewsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewintel_reviews_persisted_total",
			Help: "Reviews that survived dedup and were written to the store.",
		}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runDuration,
		s.cacheHits,
		s.pagesScraped,
		s.reviewsCollected,
		s.reviewsPersisted,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsRunning.Inc()
		}
	case progress.StageCacheHit:
		s.cacheHits.Inc()
	case progress.StagePageScraped:
		s.handlePageEvent(evt)
	case progress.StagePersisted:
		if evt.NewReviews > 0 {
			s.reviewsPersisted.Add(float64(evt.NewReviews))
		}
	case progress.StageRunDone:
		s.completeRun(evt, "success")
	case progress.StageRunError:
		s.completeRun(evt, "error")
	}
}

func (s *PrometheusSink) completeRun(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

func (s *PrometheusSink) handlePageEvent(evt progress.Event) {
	site := evt.Site
	if site == "" {
		site = "unknown"
	}
	s.pagesScraped.WithLabelValues(site).Inc()
	if evt.Reviews > 0 {
		s.reviewsCollected.WithLabelValues(site).Add(float64(evt.Reviews))
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
