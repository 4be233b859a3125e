// Package quota tracks the remote API's primary rate limit and the shared
// cooldown opened by secondary (abuse detection) limits.
//
// The guard never calls the network. It learns about quota from response
// headers and from rate limit faults.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vietddude/reqtrack/internal/core/domain"
	"github.com/vietddude/reqtrack/internal/infra/remote/fault"
	"github.com/vietddude/reqtrack/internal/status"
)

const (
	DefaultCooldownMin   = 60 * time.Second
	DefaultCooldownMax   = 120 * time.Second
	DefaultFallbackReset = 60 * time.Second
)

// Reporter is implemented by successful results that carry quota headers.
type Reporter interface {
	RateQuota() domain.Quota
}

// Config holds guard configuration.
type Config struct {
	CooldownMin   time.Duration
	CooldownMax   time.Duration
	FallbackReset time.Duration // used when a rate limit fault carries no reset
	Store         CooldownStore
	Notifier      status.Notifier
	Logger        *slog.Logger
	Clock         func() time.Time
	// Jitter returns a value in [0, n). Defaults to math/rand/v2.Int64N.
	Jitter func(n int64) int64
}

// Guard owns the rate limit state. Safe for concurrent use.
type Guard struct {
	mu            sync.Mutex
	state         *domain.RateLimitState
	cooldownUntil time.Time

	cfg Config
}

// NewGuard creates a guard with defaults filled in.
func NewGuard(cfg Config) *Guard {
	if cfg.CooldownMin <= 0 {
		cfg.CooldownMin = DefaultCooldownMin
	}
	if cfg.CooldownMax <= cfg.CooldownMin {
		cfg.CooldownMax = cfg.CooldownMin + DefaultCooldownMax - DefaultCooldownMin
	}
	if cfg.FallbackReset <= 0 {
		cfg.FallbackReset = DefaultFallbackReset
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryCooldownStore(cfg.Clock)
	}
	cfg.Notifier = status.OrNop(cfg.Notifier)
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Jitter == nil {
		cfg.Jitter = rand.Int64N
	}
	return &Guard{cfg: cfg}
}

// Observe records quota headers from a successful response. Unknown quota is
// ignored.
func (g *Guard) Observe(q domain.Quota) {
	if !q.Known() {
		return
	}
	now := g.cfg.Clock()
	reset := q.ResetAt()
	if reset.IsZero() && q.Remaining == 0 {
		reset = now.Add(g.cfg.FallbackReset)
	}
	g.set(domain.RateLimitState{
		Limit:     q.Limit,
		Remaining: q.Remaining,
		ResetAt:   reset,
		Exceeded:  q.Remaining == 0 && now.Before(reset),
	})
}

// ObserveRateLimit records a rate limit fault. The reset time comes from the
// quota headers, then Retry-After, then FallbackReset.
func (g *Guard) ObserveRateLimit(q domain.Quota) {
	now := g.cfg.Clock()
	reset := q.ResetAt()
	if !reset.After(now) {
		if q.RetryAfter > 0 {
			reset = now.Add(q.RetryAfter)
		} else {
			reset = now.Add(g.cfg.FallbackReset)
		}
	}
	g.set(domain.RateLimitState{
		Limit:     q.Limit,
		Remaining: 0,
		ResetAt:   reset,
		Exceeded:  true,
	})
}

func (g *Guard) set(next domain.RateLimitState) {
	now := g.cfg.Clock()
	g.mu.Lock()
	wasExceeded := g.exceededLocked(now)
	g.state = &next
	g.mu.Unlock()

	if next.Exceeded && !wasExceeded {
		g.cfg.Logger.Warn("Rate limit exhausted",
			"limit", next.Limit,
			"reset_in", next.ResetAt.Sub(now).Round(time.Second),
		)
		g.cfg.Notifier.RateLimitExceeded(next)
	}
}

// IsExceeded reports whether calls should be withheld. Expired state is
// cleared first.
func (g *Guard) IsExceeded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.exceededLocked(g.cfg.Clock())
}

func (g *Guard) exceededLocked(now time.Time) bool {
	g.expireLocked(now)
	return g.state != nil && g.state.Remaining == 0 && now.Before(g.state.ResetAt)
}

func (g *Guard) expireLocked(now time.Time) {
	if g.state != nil && !now.Before(g.state.ResetAt) {
		g.state = nil
	}
}

// State returns a copy of the current state, or nil if none is known.
func (g *Guard) State() *domain.RateLimitState {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expireLocked(g.cfg.Clock())
	if g.state == nil {
		return nil
	}
	s := *g.state
	return &s
}

// ResetIn returns the time until the primary quota resets. Zero when absent.
func (g *Guard) ResetIn() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.cfg.Clock()
	g.expireLocked(now)
	if g.state == nil {
		return 0
	}
	return g.state.ResetAt.Sub(now)
}

// CooldownFor returns a jittered wait strictly between CooldownMin and
// CooldownMax. A longer Retry-After from the server wins.
func (g *Guard) CooldownFor(f *fault.Fault) time.Duration {
	d := g.cfg.CooldownMin
	if span := int64(g.cfg.CooldownMax - g.cfg.CooldownMin); span > 1 {
		d += time.Duration(1 + g.cfg.Jitter(span-1))
	}
	if f != nil && f.Quota.RetryAfter > d {
		d = f.Quota.RetryAfter
	}
	return d
}

// BeginCooldown opens the shared cooldown window for an abuse fault and
// returns how long the caller must wait. If a window is already open the
// caller joins it instead of drawing its own.
func (g *Guard) BeginCooldown(ctx context.Context, f *fault.Fault) (time.Duration, error) {
	now := g.cfg.Clock()
	until, err := g.cfg.Store.Acquire(ctx, now.Add(g.CooldownFor(f)))
	if err != nil {
		return 0, fmt.Errorf("acquire cooldown: %w", err)
	}

	g.mu.Lock()
	if until.After(g.cooldownUntil) {
		g.cooldownUntil = until
	}
	g.mu.Unlock()

	wait := until.Sub(now)
	if wait < 0 {
		wait = 0
	}
	g.cfg.Logger.Warn("Secondary rate limit cooldown",
		"wait", wait.Round(time.Millisecond),
		"until", until.Format(time.RFC3339),
	)
	return wait, nil
}

// CooldownRemaining returns the time left in the active cooldown window.
func (g *Guard) CooldownRemaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	left := g.cooldownUntil.Sub(g.cfg.Clock())
	if left <= 0 {
		g.cooldownUntil = time.Time{}
		return 0
	}
	return left
}

// SharedCooldownRemaining is CooldownRemaining extended to windows opened by
// other clients of the store. Store errors fall back to the local window.
func (g *Guard) SharedCooldownRemaining(ctx context.Context) time.Duration {
	local := g.CooldownRemaining()
	reader, ok := g.cfg.Store.(CooldownReader)
	if !ok {
		return local
	}
	shared, err := reader.Remaining(ctx)
	if err != nil {
		g.cfg.Logger.Debug("Failed to read shared cooldown", "error", err)
		return local
	}
	if shared <= local {
		return local
	}

	g.mu.Lock()
	if until := g.cfg.Clock().Add(shared); until.After(g.cooldownUntil) {
		g.cooldownUntil = until
	}
	g.mu.Unlock()
	return shared
}
