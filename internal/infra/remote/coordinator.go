package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/reqtrack/internal/core/domain"
	"github.com/vietddude/reqtrack/internal/infra/remote/cache"
	"github.com/vietddude/reqtrack/internal/infra/remote/fault"
	"github.com/vietddude/reqtrack/internal/infra/remote/probe"
	"github.com/vietddude/reqtrack/internal/infra/remote/queue"
	"github.com/vietddude/reqtrack/internal/infra/remote/quota"
	"github.com/vietddude/reqtrack/internal/infra/remote/retry"
	"github.com/vietddude/reqtrack/internal/metrics"
	"github.com/vietddude/reqtrack/internal/status"
)

const (
	DefaultMaxAttempts      = 3
	DefaultMaxRateLimitWait = 15 * time.Minute
	DefaultAbuseRetries     = 2
)

// ErrRateLimited is the cause of a rate limit error raised without calling
// the remote service.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrNoInvoke is returned for an Operation without an Invoke function.
var ErrNoInvoke = errors.New("operation has no invoke function")

// Config holds coordinator configuration.
type Config struct {
	MaxAttempts          int
	MaxRateLimitWait     time.Duration // longest wait for a high priority call
	AbuseRetries         int           // reruns after a secondary rate limit
	DefaultCacheDuration time.Duration
	CacheDurations       map[string]time.Duration // per operation kind
}

// Deps are the components the coordinator orchestrates. Nil fields get
// in-memory defaults; a nil Monitor disables connectivity wiring.
type Deps struct {
	Cache    *cache.Cache[any]
	Guard    *quota.Guard
	Monitor  *probe.Monitor
	Executor *retry.Executor
	Queue    *queue.Queue
	Notifier status.Notifier
	Logger   *slog.Logger
	Clock    func() time.Time
	Sleep    func(ctx context.Context, d time.Duration) error
}

// Coordinator executes operations through cache, guard, retry and queue, in
// that order.
type Coordinator struct {
	cfg Config

	cache    *cache.Cache[any]
	guard    *quota.Guard
	monitor  *probe.Monitor
	executor *retry.Executor
	queue    *queue.Queue
	logger   *slog.Logger
	clock    func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a coordinator and wires queue draining to connectivity
// recovery.
func New(cfg Config, deps Deps) *Coordinator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MaxRateLimitWait <= 0 {
		cfg.MaxRateLimitWait = DefaultMaxRateLimitWait
	}
	if cfg.AbuseRetries <= 0 {
		cfg.AbuseRetries = DefaultAbuseRetries
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = retry.Sleep
	}
	if deps.Cache == nil {
		deps.Cache = cache.New[any]()
		deps.Cache.Clock = deps.Clock
	}
	if deps.Guard == nil {
		deps.Guard = quota.NewGuard(quota.Config{Notifier: deps.Notifier, Logger: deps.Logger, Clock: deps.Clock})
	}
	if deps.Executor == nil {
		deps.Executor = &retry.Executor{
			Classify: fault.Classify,
			Backoff:  retry.DefaultBackoff(),
			Sleep:    deps.Sleep,
			Logger:   deps.Logger,
		}
	}
	if deps.Queue == nil {
		deps.Queue = queue.New(queue.Config{Notifier: deps.Notifier, Logger: deps.Logger, Clock: deps.Clock})
	}

	c := &Coordinator{
		cfg:      cfg,
		cache:    deps.Cache,
		guard:    deps.Guard,
		monitor:  deps.Monitor,
		executor: deps.Executor,
		queue:    deps.Queue,
		logger:   deps.Logger,
		clock:    deps.Clock,
		sleep:    deps.Sleep,
	}

	if c.monitor != nil {
		c.monitor.OnOnline(func(ctx context.Context) {
			c.Drain(ctx)
		})
	}
	return c
}

// Execute runs op. It returns a Result for fresh, cached, degraded and queued
// outcomes, and a *fault.Error (or an error matching fault.ErrCanceled) when
// the call fails.
func (c *Coordinator) Execute(ctx context.Context, op Operation, opts Options) (*Result, error) {
	start := c.clock()
	res, err := c.execute(ctx, op, opts)

	outcome := "error"
	if err == nil {
		outcome = string(res.Kind)
	} else if errors.Is(err, fault.ErrCanceled) {
		outcome = "canceled"
	}
	metrics.RemoteCallsTotal.WithLabelValues(op.Kind, outcome).Inc()
	metrics.RemoteCallLatency.WithLabelValues(op.Kind).Observe(c.clock().Sub(start).Seconds())
	return res, err
}

func (c *Coordinator) execute(ctx context.Context, op Operation, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fault.Canceled(err)
	}
	if op.Invoke == nil {
		return nil, fault.NewError(fault.For(domain.ErrorTypeUnknown), fmt.Errorf("%s: %w", op.Kind, ErrNoInvoke))
	}

	if opts.CacheKey != "" {
		if e, stale, ok := c.cache.Lookup(opts.CacheKey); ok && !stale {
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			return &Result{Kind: ResultCached, Value: e.Value, StoredAt: e.StoredAt}, nil
		}
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	if c.guard.IsExceeded() {
		return c.degrade(ctx, op, opts, nil)
	}

	if wait := c.guard.SharedCooldownRemaining(ctx); wait > 0 {
		c.logger.Debug("Waiting for secondary rate limit cooldown", "kind", op.Kind, "wait", wait)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, fault.Canceled(err)
		}
	}

	value, err := c.executor.Run(ctx, op.Invoke, c.attempts(opts))
	if err != nil {
		return c.handleFailure(ctx, op, opts, err, false)
	}
	return c.succeed(op, opts, value), nil
}

func (c *Coordinator) succeed(op Operation, opts Options, value any) *Result {
	if r, ok := value.(quota.Reporter); ok {
		q := r.RateQuota()
		c.guard.Observe(q)
		if q.Known() {
			metrics.RateLimitRemaining.Set(float64(q.Remaining))
		}
	}

	res := &Result{Kind: ResultFresh, Value: value}
	if opts.CacheKey != "" {
		if c.cache.Set(opts.CacheKey, value, c.cacheDuration(op, opts)) {
			res.StoredAt = c.clock()
		}
	}
	return res
}

// handleFailure maps a failed call onto a result. A rerun is the single
// follow-up call made after a rate limit wait or abuse cooldown; its quota
// faults are surfaced instead of waiting again.
func (c *Coordinator) handleFailure(ctx context.Context, op Operation, opts Options, err error, rerun bool) (*Result, error) {
	if errors.Is(err, fault.ErrCanceled) {
		return nil, err
	}

	cls := fault.Classify(err)
	metrics.RemoteFaultsTotal.WithLabelValues(string(cls.Type)).Inc()

	var f *fault.Fault
	errors.As(err, &f)

	switch cls.Type {
	case domain.ErrorTypeRateLimit:
		var q domain.Quota
		if f != nil {
			q = f.Quota
		}
		c.guard.ObserveRateLimit(q)
		if rerun {
			if res, ok := c.staleResult(opts); ok {
				return res, nil
			}
			return nil, c.rateLimitError(err)
		}
		return c.degrade(ctx, op, opts, err)

	case domain.ErrorTypeAbuseDetected:
		if rerun {
			return nil, fault.NewError(cls, err)
		}
		return c.cooldownAndRerun(ctx, op, opts, f, err)
	}

	if cls.Category == domain.CategoryTransientNetwork {
		if c.monitor != nil {
			c.monitor.MarkOffline(string(cls.Type))
		}
		if opts.Queueable {
			id := c.enqueue(op, opts)
			c.logger.Info("Operation deferred until connectivity returns",
				"kind", op.Kind,
				"id", id,
				"type", cls.Type,
			)
			return &Result{Kind: ResultQueued, QueueID: id}, nil
		}
	}

	c.logger.Debug("Remote call failed", "kind", op.Kind, "type", cls.Type, "error", err)
	return nil, fault.NewError(cls, err)
}

// degrade serves a cached value while rate limited. Without one, a high
// priority call waits for the reset and tries once more.
func (c *Coordinator) degrade(ctx context.Context, op Operation, opts Options, cause error) (*Result, error) {
	if res, ok := c.staleResult(opts); ok {
		return res, nil
	}

	if opts.Priority < domain.PriorityHigh {
		return nil, c.rateLimitError(cause)
	}

	wait := c.guard.ResetIn()
	if wait > c.cfg.MaxRateLimitWait {
		c.logger.Warn("Rate limit reset too far away to wait",
			"kind", op.Kind,
			"reset_in", wait.Round(time.Second),
			"max_wait", c.cfg.MaxRateLimitWait,
		)
		return nil, c.rateLimitError(cause)
	}
	if wait > 0 {
		c.logger.Info("Waiting for rate limit reset", "kind", op.Kind, "wait", wait.Round(time.Second))
		if err := c.sleep(ctx, wait); err != nil {
			return nil, fault.Canceled(err)
		}
	}

	value, err := c.executor.Run(ctx, op.Invoke, c.attempts(opts))
	if err == nil {
		return c.succeed(op, opts, value), nil
	}
	return c.handleFailure(ctx, op, opts, err, true)
}

func (c *Coordinator) staleResult(opts Options) (*Result, bool) {
	if opts.CacheKey == "" {
		return nil, false
	}
	e, stale, ok := c.cache.Lookup(opts.CacheKey)
	if !ok {
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues("stale").Inc()
	return &Result{Kind: ResultDegraded, Value: e.Value, Stale: stale, StoredAt: e.StoredAt}, true
}

func (c *Coordinator) rateLimitError(cause error) *fault.Error {
	if cause == nil {
		cause = ErrRateLimited
	}
	e := fault.NewError(fault.For(domain.ErrorTypeRateLimit), cause)
	if s := c.guard.State(); s != nil {
		e.ResetAt = s.ResetAt
		e.UserMessage = fmt.Sprintf("API rate limit exceeded, resets at %s (in %s)",
			s.ResetAt.Local().Format("15:04:05"),
			c.guard.ResetIn().Round(time.Second),
		)
	}
	return e
}

// cooldownAndRerun waits out the shared abuse cooldown and reruns the
// operation, up to AbuseRetries times.
func (c *Coordinator) cooldownAndRerun(ctx context.Context, op Operation, opts Options, f *fault.Fault, err error) (*Result, error) {
	for round := 1; round <= c.cfg.AbuseRetries; round++ {
		wait, cerr := c.guard.BeginCooldown(ctx, f)
		if cerr != nil {
			c.logger.Warn("Shared cooldown unavailable, using local wait", "error", cerr)
			wait = c.guard.CooldownFor(f)
		}
		c.logger.Info("Secondary rate limit hit, cooling down",
			"kind", op.Kind,
			"round", round,
			"wait", wait.Round(time.Millisecond),
		)
		if serr := c.sleep(ctx, wait); serr != nil {
			return nil, fault.Canceled(serr)
		}

		value, rerr := c.executor.Run(ctx, op.Invoke, c.attempts(opts))
		if rerr == nil {
			return c.succeed(op, opts, value), nil
		}
		err = rerr
		if errors.Is(err, fault.ErrCanceled) {
			return nil, err
		}
		if fault.Classify(err).Type != domain.ErrorTypeAbuseDetected {
			return c.handleFailure(ctx, op, opts, err, true)
		}
		f = nil
		errors.As(err, &f)
	}

	cls := fault.Classify(err)
	return nil, fault.NewError(cls, err)
}

func (c *Coordinator) enqueue(op Operation, opts Options) string {
	thunk := func(ctx context.Context) error {
		value, err := c.executor.Run(ctx, op.Invoke, c.attempts(opts))
		if err != nil {
			cls := fault.Classify(err)
			var f *fault.Fault
			if cls.Type == domain.ErrorTypeRateLimit && errors.As(err, &f) {
				c.guard.ObserveRateLimit(f.Quota)
			}
			// Still unreachable: the next successful probe drains again.
			if cls.Category == domain.CategoryTransientNetwork && c.monitor != nil && !errors.Is(err, fault.ErrCanceled) {
				c.monitor.MarkOffline(string(cls.Type))
			}
			return err
		}
		c.succeed(op, opts, value)
		if opts.OnDeferred != nil {
			opts.OnDeferred(value)
		}
		return nil
	}
	return c.queue.Enqueue(op.Kind, thunk, opts.Priority)
}

// Drain replays queued operations now.
func (c *Coordinator) Drain(ctx context.Context) queue.DrainReport {
	return c.queue.Drain(ctx)
}

// Stats returns a snapshot of the access layer.
func (c *Coordinator) Stats() domain.AccessStats {
	s := domain.AccessStats{
		CacheEntries: c.cache.Len(),
		QueueLength:  c.queue.Len(),
		RateLimit:    c.guard.State(),
		Cooldown:     c.guard.CooldownRemaining().Milliseconds(),
	}
	if c.monitor != nil {
		s.Connectivity = c.monitor.Status()
	}
	return s
}

// Queue returns the deferred operation queue.
func (c *Coordinator) Queue() *queue.Queue { return c.queue }

// Guard returns the rate limit guard.
func (c *Coordinator) Guard() *quota.Guard { return c.guard }

func (c *Coordinator) attempts(opts Options) int {
	if opts.MaxAttempts > 0 {
		return opts.MaxAttempts
	}
	return c.cfg.MaxAttempts
}

func (c *Coordinator) cacheDuration(op Operation, opts Options) time.Duration {
	if opts.CacheDuration > 0 {
		return opts.CacheDuration
	}
	if d, ok := c.cfg.CacheDurations[op.Kind]; ok {
		return d
	}
	return c.cfg.DefaultCacheDuration
}
