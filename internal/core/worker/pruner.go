package worker

import (
	"context"
	"log/slog"
	"time"
)

// Target is something the pruner sweeps. Prune returns how many items it
// dropped.
type Target struct {
	Name  string
	Prune func() int
}

// Pruner periodically drops data past its retention.
type Pruner struct {
	interval time.Duration
	targets  []Target
	log      *slog.Logger
}

// NewPruner creates a new Pruner worker. The sweep interval is a tenth of
// retention, clamped to [1m, 1h]. A non-positive retention disables it.
func NewPruner(retention time.Duration, log *slog.Logger, targets ...Target) *Pruner {
	if log == nil {
		log = slog.Default()
	}
	var interval time.Duration
	if retention > 0 {
		interval = min(retention/10, 1*time.Hour)
		interval = max(interval, 1*time.Minute)
	}
	return &Pruner{interval: interval, targets: targets, log: log}
}

// Interval returns the sweep interval. Zero when disabled.
func (p *Pruner) Interval() time.Duration {
	return p.interval
}

// Start runs the pruner loop until ctx ends.
func (p *Pruner) Start(ctx context.Context) {
	if p.interval <= 0 {
		return // Retention disabled
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune()
		}
	}
}

// Prune sweeps every target once and returns the total dropped.
func (p *Pruner) Prune() int {
	total := 0
	for _, t := range p.targets {
		n := t.Prune()
		if n > 0 {
			p.log.Debug("[Pruner] dropped expired items", "target", t.Name, "count", n)
		}
		total += n
	}
	return total
}
