// Package probe tracks whether the remote service is reachable and notifies
// listeners when it comes back online.
package probe

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/reqtrack/internal/core/domain"
	"github.com/vietddude/reqtrack/internal/status"
)

const (
	DefaultInterval      = 30 * time.Second
	DefaultSlowThreshold = 3000 * time.Millisecond
	DefaultTimeout       = 5 * time.Second
)

// Config holds monitor configuration.
type Config struct {
	Endpoints     []Endpoint
	Interval      time.Duration
	SlowThreshold time.Duration
	Timeout       time.Duration // per probe
	Notifier      status.Notifier
	Logger        *slog.Logger
	Clock         func() time.Time
}

// Monitor probes endpoints periodically and on demand. It is the only writer
// of the connectivity snapshot.
type Monitor struct {
	prober Prober
	cfg    Config

	mu        sync.RWMutex
	snapshot  domain.ConnectivitySnapshot
	listeners []func(ctx context.Context)

	probeInFlight atomic.Bool

	runMu     sync.Mutex
	listenCtx context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewMonitor creates a monitor. Nothing is probed until CheckNow or Start.
func NewMonitor(prober Prober, cfg Config) *Monitor {
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = DefaultEndpoints
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = DefaultSlowThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.Notifier = status.OrNop(cfg.Notifier)
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	endpoints := make([]domain.EndpointStatus, len(cfg.Endpoints))
	for i, ep := range cfg.Endpoints {
		endpoints[i] = domain.EndpointStatus{Name: ep.Name, URL: ep.URL, State: domain.StateUnknown}
	}

	return &Monitor{
		prober:    prober,
		cfg:       cfg,
		snapshot:  domain.ConnectivitySnapshot{Endpoints: endpoints},
		listenCtx: context.Background(),
	}
}

// OnOnline registers fn to run, in its own goroutine, every time the service
// goes from offline to online. The first successful probe after startup is
// not a transition.
func (m *Monitor) OnOnline(fn func(ctx context.Context)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// CheckNow runs one probe cycle. If a cycle is already running it returns
// the last known snapshot without probing.
func (m *Monitor) CheckNow(ctx context.Context) domain.ConnectivitySnapshot {
	if !m.probeInFlight.CompareAndSwap(false, true) {
		return m.Status()
	}
	defer m.probeInFlight.Store(false)

	results := make([]domain.EndpointStatus, len(m.cfg.Endpoints))
	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range m.cfg.Endpoints {
		g.Go(func() error {
			results[i] = m.probeOne(gctx, ep)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return m.Status()
	}

	online := false
	for _, r := range results {
		if r.State.Reachable() {
			online = true
			break
		}
	}
	return m.apply(domain.ConnectivitySnapshot{
		Online:        online,
		Known:         true,
		Endpoints:     results,
		LastCheckedAt: m.cfg.Clock(),
	})
}

func (m *Monitor) probeOne(ctx context.Context, ep Endpoint) domain.EndpointStatus {
	pctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	start := m.cfg.Clock()
	err := m.prober.Probe(pctx, ep)
	now := m.cfg.Clock()

	st := domain.EndpointStatus{
		Name:      ep.Name,
		URL:       ep.URL,
		Latency:   now.Sub(start),
		CheckedAt: now,
	}
	switch {
	case err != nil:
		st.State = domain.StateDisconnected
		st.Error = err.Error()
	case st.Latency > m.cfg.SlowThreshold:
		st.State = domain.StateSlow
	default:
		st.State = domain.StateConnected
	}
	return st
}

func (m *Monitor) apply(next domain.ConnectivitySnapshot) domain.ConnectivitySnapshot {
	m.mu.Lock()
	prev := m.snapshot
	m.snapshot = next
	listeners := append([]func(context.Context){}, m.listeners...)
	m.mu.Unlock()

	changed := !prev.Known || prev.Online != next.Online
	if !changed {
		return next
	}

	if next.Online {
		m.cfg.Logger.Info("Connectivity restored", "was_known", prev.Known)
	} else {
		m.cfg.Logger.Warn("Connectivity lost", "endpoints", len(next.Endpoints))
	}
	m.cfg.Notifier.ConnectivityChanged(next)

	if prev.Known && !prev.Online && next.Online {
		m.fire(listeners)
	}
	return next
}

func (m *Monitor) fire(listeners []func(context.Context)) {
	m.runMu.Lock()
	ctx := m.listenCtx
	m.runMu.Unlock()

	for _, fn := range listeners {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			fn(ctx)
		}()
	}
}

// MarkOffline records a connection failure seen outside of probing, so the
// next successful probe counts as coming back online.
func (m *Monitor) MarkOffline(reason string) {
	m.mu.Lock()
	if m.snapshot.Known && !m.snapshot.Online {
		m.mu.Unlock()
		return
	}
	m.snapshot.Online = false
	m.snapshot.Known = true
	snap := m.copyLocked()
	m.mu.Unlock()

	m.cfg.Logger.Warn("Connectivity marked offline", "reason", reason)
	m.cfg.Notifier.ConnectivityChanged(snap)
}

// Status returns the last snapshot.
func (m *Monitor) Status() domain.ConnectivitySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyLocked()
}

func (m *Monitor) copyLocked() domain.ConnectivitySnapshot {
	s := m.snapshot
	s.Endpoints = append([]domain.EndpointStatus(nil), m.snapshot.Endpoints...)
	return s
}

// IsOnline reports whether the last snapshot is online. Unknown counts as
// online so that calls are attempted before the first probe.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.snapshot.Known || m.snapshot.Online
}

// Start probes immediately and then every Interval until Stop or ctx ends.
func (m *Monitor) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.listenCtx = runCtx
	m.done = make(chan struct{})

	go m.loop(runCtx, m.done)
	m.cfg.Logger.Info("Connectivity monitor started",
		"endpoints", len(m.cfg.Endpoints),
		"interval", m.cfg.Interval,
	)
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.CheckNow(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// Stop cancels the periodic task and waits for it and any running listeners.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.runMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	m.wg.Wait()
}
