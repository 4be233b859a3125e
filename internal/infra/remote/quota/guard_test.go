package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vietddude/reqtrack/internal/core/domain"
	"github.com/vietddude/reqtrack/internal/infra/remote/fault"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type countingNotifier struct {
	mu       sync.Mutex
	exceeded []domain.RateLimitState
}

func (n *countingNotifier) ConnectivityChanged(domain.ConnectivitySnapshot) {}
func (n *countingNotifier) QueueLengthChanged(int)                          {}
func (n *countingNotifier) RateLimitExceeded(s domain.RateLimitState) {
	n.mu.Lock()
	n.exceeded = append(n.exceeded, s)
	n.mu.Unlock()
}

func newTestGuard(cfg Config) (*Guard, *fakeClock) {
	clk := &fakeClock{now: time.Unix(1_700_000_000, 0).UTC()}
	cfg.Clock = clk.Now
	return NewGuard(cfg), clk
}

func TestGuard_LazyExpiry(t *testing.T) {
	g, clk := newTestGuard(Config{})
	reset := clk.Now().Add(30 * time.Second)
	g.Observe(domain.Quota{Limit: 5000, Remaining: 0, Reset: reset.Unix()})

	require.True(t, g.IsExceeded())
	require.Equal(t, 30*time.Second, g.ResetIn())

	clk.Advance(30*time.Second - time.Millisecond)
	require.True(t, g.IsExceeded())

	clk.Advance(time.Millisecond)
	require.False(t, g.IsExceeded())
	require.Nil(t, g.State(), "state cleared once reset passed")
	require.False(t, g.IsExceeded(), "idempotent")
	require.Zero(t, g.ResetIn())
}

func TestGuard_ObserveIgnoresUnknownQuota(t *testing.T) {
	g, _ := newTestGuard(Config{})
	g.Observe(domain.Quota{})
	require.Nil(t, g.State())
}

func TestGuard_ObserveRemaining(t *testing.T) {
	g, clk := newTestGuard(Config{})
	g.Observe(domain.Quota{Limit: 5000, Remaining: 4999, Reset: clk.Now().Add(time.Hour).Unix()})

	s := g.State()
	require.NotNil(t, s)
	require.Equal(t, 4999, s.Remaining)
	require.False(t, s.Exceeded)
	require.False(t, g.IsExceeded())

	// State returns a copy.
	s.Remaining = 0
	require.Equal(t, 4999, g.State().Remaining)
}

func TestGuard_ObserveRateLimitFallbacks(t *testing.T) {
	tests := []struct {
		name string
		q    domain.Quota
		want time.Duration
	}{
		{"reset header", domain.Quota{Limit: 60, Reset: 1_700_000_000 + 120}, 120 * time.Second},
		{"retry after", domain.Quota{RetryAfter: 45 * time.Second}, 45 * time.Second},
		{"stale reset uses retry after", domain.Quota{Reset: 1_699_999_000, RetryAfter: 10 * time.Second}, 10 * time.Second},
		{"nothing", domain.Quota{}, DefaultFallbackReset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGuard(Config{})
			g.ObserveRateLimit(tt.q)
			require.True(t, g.IsExceeded())
			require.Equal(t, tt.want, g.ResetIn())
		})
	}
}

func TestGuard_NotifiesOnTransitionOnly(t *testing.T) {
	n := &countingNotifier{}
	g, clk := newTestGuard(Config{Notifier: n})

	g.ObserveRateLimit(domain.Quota{Limit: 60, Reset: clk.Now().Add(time.Minute).Unix()})
	g.ObserveRateLimit(domain.Quota{Limit: 60, Reset: clk.Now().Add(time.Minute).Unix()})
	require.Len(t, n.exceeded, 1)

	clk.Advance(2 * time.Minute)
	g.ObserveRateLimit(domain.Quota{Limit: 60})
	require.Len(t, n.exceeded, 2)
}

func TestGuard_CooldownWithinWindow(t *testing.T) {
	for _, jitter := range []func(int64) int64{
		func(int64) int64 { return 0 },
		func(n int64) int64 { return n - 1 },
		nil,
	} {
		g, _ := newTestGuard(Config{Jitter: jitter})
		for i := 0; i < 100; i++ {
			d := g.CooldownFor(nil)
			require.Greater(t, d, 60*time.Second)
			require.Less(t, d, 120*time.Second)
		}
	}
}

func TestGuard_CooldownRetryAfterWins(t *testing.T) {
	g, _ := newTestGuard(Config{})
	d := g.CooldownFor(&fault.Fault{Quota: domain.Quota{RetryAfter: 5 * time.Minute}})
	require.Equal(t, 5*time.Minute, d)

	d = g.CooldownFor(&fault.Fault{Quota: domain.Quota{RetryAfter: time.Second}})
	require.Greater(t, d, 60*time.Second)
}

func TestGuard_SharedCooldown(t *testing.T) {
	calls := 0
	g, clk := newTestGuard(Config{Jitter: func(n int64) int64 {
		calls++
		return int64(calls) * int64(time.Second)
	}})

	first, err := g.BeginCooldown(context.Background(), nil)
	require.NoError(t, err)
	require.Greater(t, first, 60*time.Second)

	clk.Advance(10 * time.Second)
	second, err := g.BeginCooldown(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, first-10*time.Second, second, "joins the open window")
	require.Equal(t, second, g.CooldownRemaining())

	clk.Advance(second)
	require.Zero(t, g.CooldownRemaining())

	third, err := g.BeginCooldown(context.Background(), nil)
	require.NoError(t, err)
	require.Greater(t, third, 60*time.Second)
}

type failingStore struct{}

func (failingStore) Acquire(context.Context, time.Time) (time.Time, error) {
	return time.Time{}, errors.New("store down")
}

func TestGuard_CooldownStoreError(t *testing.T) {
	g, _ := newTestGuard(Config{Store: failingStore{}})
	_, err := g.BeginCooldown(context.Background(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "store down")
}

// remoteWindowStore reports a window opened by another process.
type remoteWindowStore struct {
	left time.Duration
	err  error
}

func (s remoteWindowStore) Acquire(_ context.Context, until time.Time) (time.Time, error) {
	return until, nil
}

func (s remoteWindowStore) Remaining(context.Context) (time.Duration, error) {
	return s.left, s.err
}

func TestGuard_SharedCooldownRemaining(t *testing.T) {
	g, clk := newTestGuard(Config{Store: remoteWindowStore{left: 45 * time.Second}})
	require.Zero(t, g.CooldownRemaining())

	require.Equal(t, 45*time.Second, g.SharedCooldownRemaining(context.Background()))
	// Adopted locally, so Stats-style reads see it too.
	require.Equal(t, 45*time.Second, g.CooldownRemaining())

	clk.Advance(45 * time.Second)
	require.Zero(t, g.CooldownRemaining())
}

func TestGuard_SharedCooldownRemainingStoreError(t *testing.T) {
	g, _ := newTestGuard(Config{Store: remoteWindowStore{left: time.Minute, err: errors.New("store down")}})
	require.Zero(t, g.SharedCooldownRemaining(context.Background()))
}

func TestGuard_SharedCooldownRemainingMemoryStore(t *testing.T) {
	g, clk := newTestGuard(Config{})
	wait, err := g.BeginCooldown(context.Background(), nil)
	require.NoError(t, err)

	clk.Advance(10 * time.Second)
	require.Equal(t, wait-10*time.Second, g.SharedCooldownRemaining(context.Background()))
}
