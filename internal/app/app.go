package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"FreightTracker/internal/carrier"
	"FreightTracker/internal/config"
	"FreightTracker/internal/infrastructure/diagnostics"
	"FreightTracker/internal/infrastructure/metrics"
	"FreightTracker/internal/infrastructure/scheduler"
	"FreightTracker/internal/infrastructure/session"
	"FreightTracker/internal/infrastructure/storage"
	"FreightTracker/internal/infrastructure/telegram"
	"FreightTracker/internal/logging"
	"FreightTracker/internal/ports"
	"FreightTracker/internal/server"
	"FreightTracker/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	pool    *session.Pool
	store   *storage.SQLiteRepository
	tracker *usecase.Tracker
	watcher *usecase.Watcher
	handler http.Handler
}

// New builds the full object graph from cfg. Close releases what it opened.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Application{cfg: cfg, logger: baseLogger, metrics: metrics.New()}

	a.pool = session.New(session.Options{
		Size:           cfg.Pool.Size,
		UserAgent:      cfg.Pool.UserAgent,
		RequestTimeout: cfg.Pool.RequestTimeout,
		MaxUses:        cfg.Pool.MaxUses,
		ProbeURL:       cfg.Pool.ProbeURL,
		Observer:       a.metrics,
		Logger:         baseLogger.With("component", "session.pool"),
	})

	var sink ports.DiagnosticsSink = diagnostics.NopSink{}
	if cfg.Diagnostics.Dir != "" {
		sink = diagnostics.NewFileSink(cfg.Diagnostics.Dir)
	}

	registry, err := carrier.NewRegistryFromConfig(cfg.Carriers, carrier.Deps{
		Diagnostics: sink,
		Logger:      baseLogger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build carriers: %w", err)
	}

	var repo ports.RecordRepository
	if cfg.Database.Path != "" {
		a.store, err = storage.Open(cfg.Database.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open history store: %w", err)
		}
		repo = a.store
	}

	a.tracker = usecase.NewTracker(usecase.TrackerDeps{
		Registry:    registry,
		Order:       cfg.CarrierNames(),
		Sessions:    a.pool,
		Repository:  repo,
		Diagnostics: sink,
		Observer:    a.metrics,
		Logger:      baseLogger.With("component", "tracker"),
	})

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = telegram.NewNotifier(tg.BotToken, tg.ChatID)
	}

	a.watcher = usecase.NewWatcher(usecase.WatcherDeps{
		Tracker:         a.tracker,
		Repository:      repo,
		Notifier:        notifier,
		Driver:          scheduler.NewIntervalScheduler(cfg.Scheduler.Interval, cfg.Scheduler.Location()),
		TrackingNumbers: cfg.Watch.TrackingNumbers,
		Logger:          baseLogger.With("component", "watcher"),
	})

	a.handler, err = server.New(server.Config{
		Tracker:    a.tracker,
		Repository: repo,
		Metrics:    a.metrics.Handler(),
		BasePath:   cfg.Server.BasePath,
		Logger:     baseLogger.With("component", "http"),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build http api: %w", err)
	}

	return a, nil
}

// Config returns the configuration the application was built from.
func (a *Application) Config() config.Config { return a.cfg }

// Tracker exposes the multi-source orchestrator.
func (a *Application) Tracker() *usecase.Tracker { return a.tracker }

// Watcher exposes the scheduled change watcher.
func (a *Application) Watcher() *usecase.Watcher { return a.watcher }

// Handler is the HTTP API including /metrics.
func (a *Application) Handler() http.Handler { return a.handler }

// Run performs a single watch pass over the configured tracking numbers.
func (a *Application) Run(ctx context.Context) ([]usecase.Change, error) {
	if a.watcher == nil {
		return nil, nil
	}
	return a.watcher.RunOnce(ctx)
}

// Close releases pooled sessions and the history store.
func (a *Application) Close() error {
	var errs []error
	if a.pool != nil {
		errs = append(errs, a.pool.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
