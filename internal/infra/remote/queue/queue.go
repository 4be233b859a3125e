// Package queue defers operations that failed for connectivity reasons and
// replays them, in priority order, when the remote service is reachable
// again.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vietddude/reqtrack/internal/core/domain"
	"github.com/vietddude/reqtrack/internal/metrics"
	"github.com/vietddude/reqtrack/internal/status"
)

const (
	DefaultMaxAge     = 3 * time.Minute
	DefaultMaxRetries = 3
)

// Thunk replays a deferred operation.
type Thunk func(ctx context.Context) error

// Operation is a deferred call waiting for connectivity.
type Operation struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Priority   domain.Priority `json:"priority"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	MaxAge     time.Duration   `json:"max_age"`
	RetryCount int             `json:"retry_count"`

	thunk Thunk
}

// Expired reports whether the operation outlived its max age at now.
func (o *Operation) Expired(now time.Time) bool {
	return now.Sub(o.EnqueuedAt) > o.MaxAge
}

// Config holds queue configuration.
type Config struct {
	MaxAges       map[string]time.Duration // per operation kind
	DefaultMaxAge time.Duration
	MaxRetries    int
	DrainRate     float64 // operations per second during a drain, 0 = unpaced
	Notifier      status.Notifier
	Logger        *slog.Logger
	Clock         func() time.Time
}

// DrainReport summarises one drain pass.
type DrainReport struct {
	Attempted int  `json:"attempted"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
	Expired   int  `json:"expired"`
	Evicted   int  `json:"evicted"`
	Coalesced bool `json:"coalesced"`
}

// Queue holds deferred operations ordered by priority, then insertion.
type Queue struct {
	mu    sync.Mutex
	items []*Operation

	draining atomic.Bool
	limiter  *rate.Limiter
	cfg      Config
}

// New creates an empty queue.
func New(cfg Config) *Queue {
	if cfg.DefaultMaxAge <= 0 {
		cfg.DefaultMaxAge = DefaultMaxAge
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	cfg.Notifier = status.OrNop(cfg.Notifier)
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	q := &Queue{cfg: cfg}
	if cfg.DrainRate > 0 {
		q.limiter = rate.NewLimiter(rate.Limit(cfg.DrainRate), 1)
	}
	return q
}

// MaxAgeFor returns the max age applied to operations of kind.
func (q *Queue) MaxAgeFor(kind string) time.Duration {
	if d, ok := q.cfg.MaxAges[kind]; ok && d > 0 {
		return d
	}
	return q.cfg.DefaultMaxAge
}

// Enqueue adds an operation and returns its ID.
func (q *Queue) Enqueue(kind string, thunk Thunk, priority domain.Priority) string {
	op := &Operation{
		ID:         uuid.New().String(),
		Kind:       kind,
		Priority:   priority,
		EnqueuedAt: q.cfg.Clock(),
		MaxAge:     q.MaxAgeFor(kind),
		thunk:      thunk,
	}

	q.mu.Lock()
	// Insert after every item of equal or higher priority.
	i := len(q.items)
	for j, it := range q.items {
		if it.Priority < priority {
			i = j
			break
		}
	}
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = op
	n := len(q.items)
	q.mu.Unlock()

	q.cfg.Logger.Debug("Operation queued",
		"id", op.ID,
		"kind", kind,
		"priority", priority.String(),
		"max_age", op.MaxAge,
	)
	q.cfg.Notifier.QueueLengthChanged(n)
	return op.ID
}

// Drain replays queued operations. Only one drain runs at a time; a
// concurrent call returns immediately with Coalesced set. Items enqueued
// while a drain is in flight are picked up before it returns.
func (q *Queue) Drain(ctx context.Context) DrainReport {
	if !q.draining.CompareAndSwap(false, true) {
		return DrainReport{Coalesced: true}
	}
	defer q.draining.Store(false)

	var report DrainReport
	seen := make(map[string]bool)

	for ctx.Err() == nil {
		report.Expired += q.purgeExpired()

		op := q.next(seen)
		if op == nil {
			break
		}
		seen[op.ID] = true

		if q.limiter != nil {
			if err := q.limiter.Wait(ctx); err != nil {
				break
			}
		}

		report.Attempted++
		if err := op.thunk(ctx); err != nil {
			if q.recordFailure(op.ID) {
				report.Evicted++
				metrics.QueueDrainedTotal.WithLabelValues("evicted").Inc()
			} else {
				report.Failed++
				metrics.QueueDrainedTotal.WithLabelValues("failed").Inc()
			}
			q.cfg.Logger.Debug("Queued operation failed", "id", op.ID, "kind", op.Kind, "error", err)
			continue
		}

		q.Remove(op.ID)
		report.Succeeded++
		metrics.QueueDrainedTotal.WithLabelValues("succeeded").Inc()
	}

	if report.Attempted > 0 || report.Expired > 0 {
		q.cfg.Logger.Info("Operation queue drained",
			"attempted", report.Attempted,
			"succeeded", report.Succeeded,
			"failed", report.Failed,
			"expired", report.Expired,
			"evicted", report.Evicted,
			"remaining", q.Len(),
		)
	}
	return report
}

// next returns the first queued operation not yet attempted in this drain.
func (q *Queue) next(seen map[string]bool) *Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, op := range q.items {
		if !seen[op.ID] {
			return op
		}
	}
	return nil
}

// PurgeExpired drops operations older than their max age.
func (q *Queue) PurgeExpired() int {
	return q.purgeExpired()
}

func (q *Queue) purgeExpired() int {
	now := q.cfg.Clock()

	q.mu.Lock()
	kept := q.items[:0]
	expired := 0
	for _, op := range q.items {
		if op.Expired(now) {
			expired++
			continue
		}
		kept = append(kept, op)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	n := len(q.items)
	q.mu.Unlock()

	if expired > 0 {
		metrics.QueueDrainedTotal.WithLabelValues("expired").Add(float64(expired))
		q.cfg.Notifier.QueueLengthChanged(n)
	}
	return expired
}

// recordFailure bumps the retry count and reports whether the operation was
// evicted.
func (q *Queue) recordFailure(id string) bool {
	q.mu.Lock()
	var op *Operation
	for _, it := range q.items {
		if it.ID == id {
			op = it
			break
		}
	}
	if op == nil {
		q.mu.Unlock()
		return false
	}
	op.RetryCount++
	evict := op.RetryCount >= q.cfg.MaxRetries
	q.mu.Unlock()

	if evict {
		q.cfg.Logger.Warn("Dropping queued operation after repeated failures",
			"id", id,
			"kind", op.Kind,
			"retries", op.RetryCount,
		)
		q.Remove(id)
	}
	return evict
}

// Remove deletes an operation by ID.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	idx := -1
	for i, op := range q.items {
		if op.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	n := len(q.items)
	q.mu.Unlock()

	q.cfg.Notifier.QueueLengthChanged(n)
	return true
}

// Len returns the number of queued operations.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns copies of the queued operations in drain order.
func (q *Queue) Snapshot() []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Operation, len(q.items))
	for i, op := range q.items {
		out[i] = *op
		out[i].thunk = nil
	}
	return out
}

// Draining reports whether a drain is in flight.
func (q *Queue) Draining() bool {
	return q.draining.Load()
}
