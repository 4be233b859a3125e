package control

import (
	"context"
	"errors"
	"fmt"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vietddude/reqtrack/internal/core/config"
	"github.com/vietddude/reqtrack/internal/core/worker"
	redisclient "github.com/vietddude/reqtrack/internal/infra/redis"
	"github.com/vietddude/reqtrack/internal/infra/remote"
	"github.com/vietddude/reqtrack/internal/infra/remote/cache"
	"github.com/vietddude/reqtrack/internal/infra/remote/fault"
	"github.com/vietddude/reqtrack/internal/infra/remote/github"
	"github.com/vietddude/reqtrack/internal/infra/remote/probe"
	"github.com/vietddude/reqtrack/internal/infra/remote/queue"
	"github.com/vietddude/reqtrack/internal/infra/remote/quota"
	"github.com/vietddude/reqtrack/internal/infra/remote/retry"
	"github.com/vietddude/reqtrack/internal/status"
)

// App is the main application struct that manages the access layer lifecycle.
type App struct {
	cfg          *config.AppConfig
	client       *github.Client
	monitor      *probe.Monitor
	coordinator  *remote.Coordinator
	reporter     *status.Reporter
	pruner       *worker.Pruner
	healthServer *status.Server
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// NewApp creates a new App with all dependencies initialized.
func NewApp(cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	log := slog.Default()

	// 1. Notifications
	notifiers := status.Multi{status.NewLogNotifier(log), status.MetricsNotifier{}}

	// 2. Optional Redis for cross-process cooldown and events
	var (
		redisClient   *redisclient.Client
		cooldownStore quota.CooldownStore
	)
	if cfg.Redis.Enabled() {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, using in-process cooldown", "error", err)
		} else {
			cooldownStore = redisclient.NewCooldownStore(redisClient)
			notifiers = append(notifiers, redisclient.NewEventPublisher(redisClient, log))
			log.Info("Using Redis for shared cooldown and events")
		}
	}

	// 3. Components
	guard := quota.NewGuard(quota.Config{
		CooldownMin: cfg.RateLimit.CooldownMin,
		CooldownMax: cfg.RateLimit.CooldownMax,
		Store:       cooldownStore,
		Notifier:    notifiers,
		Logger:      log,
	})

	monitor := probe.NewMonitor(
		probe.NewHTTPProber(cfg.Connectivity.Timeout, cfg.GitHub.UserAgent),
		probe.Config{
			Endpoints:     cfg.Connectivity.Endpoints,
			Interval:      cfg.Connectivity.Interval,
			SlowThreshold: cfg.Connectivity.SlowThreshold,
			Timeout:       cfg.Connectivity.Timeout,
			Notifier:      notifiers,
			Logger:        log,
		},
	)

	executor := &retry.Executor{
		Classify: fault.Classify,
		Backoff: retry.Backoff{
			BaseDelays:  cfg.Retry.BaseDelays,
			DefaultBase: cfg.Retry.DefaultBase,
			MaxDelay:    cfg.Retry.MaxDelay,
		},
		Logger: log,
	}

	q := queue.New(queue.Config{
		MaxAges:       cfg.Queue.MaxAges,
		DefaultMaxAge: cfg.Queue.DefaultMaxAge,
		MaxRetries:    cfg.Queue.MaxRetries,
		DrainRate:     cfg.Queue.DrainRate,
		Notifier:      notifiers,
		Logger:        log,
	})

	responses := cache.New[any]()
	coordinator := remote.New(
		remote.Config{
			MaxAttempts:          cfg.Retry.MaxAttempts,
			MaxRateLimitWait:     cfg.RateLimit.MaxWait,
			DefaultCacheDuration: cfg.Cache.DefaultDuration,
			CacheDurations:       cfg.Cache.Durations,
		},
		remote.Deps{
			Cache:    responses,
			Guard:    guard,
			Monitor:  monitor,
			Executor: executor,
			Queue:    q,
			Notifier: notifiers,
			Logger:   log,
		},
	)

	pruner := worker.NewPruner(cfg.Cache.StaleRetention, log,
		worker.Target{Name: "cache", Prune: func() int { return responses.Prune(cfg.Cache.StaleRetention) }},
		worker.Target{Name: "queue", Prune: q.PurgeExpired},
	)

	// 4. Health
	reporter := status.NewReporter(coordinator)
	healthServer := status.NewServer(reporter, fmt.Sprintf(":%d", cfg.Server.Port),
		status.WithRoute("GET /queue", queueHandler(q)),
	)

	return &App{
		cfg: cfg,
		client: github.NewClient(github.Config{
			BaseURL:   cfg.GitHub.BaseURL,
			Token:     cfg.GitHub.Token,
			Timeout:   cfg.GitHub.Timeout,
			UserAgent: cfg.GitHub.UserAgent,
		}),
		monitor:      monitor,
		coordinator:  coordinator,
		reporter:     reporter,
		pruner:       pruner,
		healthServer: healthServer,
		redisClient:  redisClient,
		log:          log,
	}, nil
}

// Start starts the health server and the connectivity monitor.
func (a *App) Start(ctx context.Context) error {
	if err := a.healthServer.Listen(); err != nil {
		return fmt.Errorf("health server: %w", err)
	}
	go func() {
		if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	a.monitor.Start(ctx)
	go a.pruner.Start(ctx)
	return nil
}

// WatchConnectivity starts only the connectivity monitor, so queued
// operations drain once the remote service is reachable again.
func (a *App) WatchConnectivity(ctx context.Context) {
	a.monitor.Start(ctx)
}

// Stop stops the app.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping reqtrack...")

	a.monitor.Stop()

	if n := a.coordinator.Queue().Len(); n > 0 {
		a.log.Warn("Dropping queued operations on shutdown", "count", n)
	}

	// Close Redis
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}

	// Stop Health Server
	return a.healthServer.Stop(ctx)
}

// Fetch issues a GET through the coordinator.
func (a *App) Fetch(ctx context.Context, kind, path string, opts remote.Options) (*remote.Result, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}
	return a.coordinator.Execute(ctx, remote.Operation{
		Kind:   kind,
		Invoke: a.client.Invoker(http.MethodGet, path, nil),
	}, opts)
}

// Probe runs one connectivity check.
func (a *App) Probe(ctx context.Context) (status.Report, error) {
	a.monitor.CheckNow(ctx)
	if err := ctx.Err(); err != nil {
		return status.Report{}, fault.Canceled(err)
	}
	return a.reporter.Report(), nil
}

// Coordinator returns the access coordinator.
func (a *App) Coordinator() *remote.Coordinator { return a.coordinator }

// Reporter returns the health reporter.
func (a *App) Reporter() *status.Reporter { return a.reporter }

// HealthAddr returns the bound health server address.
func (a *App) HealthAddr() string { return a.healthServer.Addr() }

// queueHandler lists deferred operations without their thunks.
func queueHandler(q *queue.Queue) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(q.Snapshot())
	})
}
