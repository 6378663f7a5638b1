// Package app initializes and holds the long-lived application services,
// acting as the composition root for the review intelligence service.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kingabzpro/ECom-Intel/internal/analyzer"
	"github.com/kingabzpro/ECom-Intel/internal/api"
	clocksystem "github.com/kingabzpro/ECom-Intel/internal/clock/system"
	"github.com/kingabzpro/ECom-Intel/internal/collector"
	"github.com/kingabzpro/ECom-Intel/internal/config"
	collyfetcher "github.com/kingabzpro/ECom-Intel/internal/fetcher/colly"
	"github.com/kingabzpro/ECom-Intel/internal/firecrawl"
	uuidgen "github.com/kingabzpro/ECom-Intel/internal/id/uuid"
	"github.com/kingabzpro/ECom-Intel/internal/logging"
	"github.com/kingabzpro/ECom-Intel/internal/metrics"
	"github.com/kingabzpro/ECom-Intel/internal/openai"
	"github.com/kingabzpro/ECom-Intel/internal/orchestrator"
	"github.com/kingabzpro/ECom-Intel/internal/progress"
	"github.com/kingabzpro/ECom-Intel/internal/progress/sinks"
	"github.com/kingabzpro/ECom-Intel/internal/ratelimit"
	"github.com/kingabzpro/ECom-Intel/internal/review"
	"github.com/kingabzpro/ECom-Intel/internal/runs"
	"github.com/kingabzpro/ECom-Intel/internal/store/sqlite"
)

// App holds the shared, long-lived services. It is built once at startup and
// handed to the commands that need it.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	store   review.Store
	hub     *progress.Hub
	tracker *runs.Tracker
	orch    *orchestrator.Orchestrator
	server  *api.Server
	metrics *metrics.Metrics
}

// New loads configuration and wires every service the pipeline and the HTTP
// surface need. It fails fast when a critical dependency cannot start.
func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	logger.Info("initializing services",
		zap.String("store_path", cfg.Store.Path),
		zap.String("openai_model", cfg.OpenAI.Model))

	mets, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	clock := clocksystem.New()
	ids := uuidgen.New()

	store, err := sqlite.New(cfg.Store.Path, clock)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	tracker := runs.NewTracker(clock)

	promSink, err := sinks.NewPrometheusSink(mets.Registerer())
	if err != nil {
		return nil, fmt.Errorf("register progress collectors: %w", err)
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger},
		sinks.NewLogSink(logger),
		promSink,
		sinks.NewRunSink(tracker, logger),
	)

	scrapeClient := firecrawl.New(cfg.Firecrawl.BaseURL, cfg.Firecrawl.APIKey, cfg.FirecrawlTimeout(), logger)
	llmClient := openai.New(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAITimeout(), logger)
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Scraper.UserAgent,
		Timeout:   cfg.FirecrawlTimeout(),
	})

	coll := collector.New(
		scrapeClient,
		fetcher,
		collector.Options{
			FallbackDirect: cfg.Scraper.FallbackDirect,
			Limiter: ratelimit.New(ratelimit.Config{
				RequestsPerSecond: cfg.Scraper.RequestsPerSecond,
				Burst:             cfg.Scraper.Burst,
			}),
		},
		hub,
		clock,
		logger,
	)
	anal := analyzer.New(llmClient, cfg.Analyzer.MaxBatchChars, hub, clock, logger)
	orch := orchestrator.New(store, coll, anal, tracker, hub, ids, clock, logger)
	server := api.NewServer(orch, tracker, store, cfg, mets, logger)

	logger.Info("services initialized")
	return &App{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		hub:     hub,
		tracker: tracker,
		orch:    orch,
		server:  server,
		metrics: mets,
	}, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Server returns the HTTP surface.
func (a *App) Server() *api.Server {
	return a.server
}

// Orchestrator returns the pipeline driver, used directly by the CLI.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orch
}

// Store exposes the durable cache.
func (a *App) Store() review.Store {
	return a.store
}

// Close flushes the progress hub, closes the store, and syncs the logger.
// Call it once on shutdown after the HTTP server has stopped.
func (a *App) Close(ctx context.Context) {
	if err := a.hub.Close(ctx); err != nil {
		a.logger.Warn("progress hub close", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close", zap.Error(err))
	}
	// Sync can fail on stdout; best effort.
	_ = a.logger.Sync()
}
