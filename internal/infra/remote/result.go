package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/reqtrack/internal/core/domain"
)

// ResultKind tags how a call was satisfied.
type ResultKind string

const (
	ResultFresh    ResultKind = "fresh"    // value from a remote call
	ResultCached   ResultKind = "cached"   // fresh cache hit, no call made
	ResultDegraded ResultKind = "degraded" // cached value served while rate limited
	ResultQueued   ResultKind = "queued"   // deferred until connectivity returns
)

// Result is the outcome of Execute. Failures are returned as errors.
type Result struct {
	Kind     ResultKind
	Value    any
	Stale    bool
	QueueID  string
	StoredAt time.Time
}

// Operation is one remote call.
type Operation struct {
	Kind   string
	Invoke func(ctx context.Context) (any, error)
}

// Options controls how Execute treats an operation.
type Options struct {
	CacheKey      string
	CacheDuration time.Duration // zero uses the configured duration for the kind
	Priority      domain.Priority
	MaxAttempts   int
	Queueable     bool
	// OnDeferred receives the value when a queued operation later succeeds.
	OnDeferred func(value any)
}

// Do runs op through c and asserts the value to T. Queued results return the
// zero T.
func Do[T any](ctx context.Context, c *Coordinator, op Operation, opts Options) (T, *Result, error) {
	var zero T
	res, err := c.Execute(ctx, op, opts)
	if err != nil {
		return zero, nil, err
	}
	if res.Value == nil {
		return zero, res, nil
	}
	v, ok := res.Value.(T)
	if !ok {
		return zero, res, fmt.Errorf("unexpected result type %T for %s", res.Value, op.Kind)
	}
	return v, res, nil
}
