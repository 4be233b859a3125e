package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/reqtrack/internal/infra/remote/fault"
)

// DefaultMaxAttempts is used when Run is given a non-positive attempt count.
const DefaultMaxAttempts = 3

// Func is a single remote call.
type Func func(ctx context.Context) (any, error)

// Executor runs a call up to maxAttempts times. It knows nothing about
// caching or queueing.
type Executor struct {
	Classify func(error) fault.Classification
	Backoff  Backoff
	// Sleep waits for d or until ctx ends. Defaults to a timer select.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// NewExecutor creates an executor with the default classifier and backoff.
func NewExecutor(b Backoff) *Executor {
	return &Executor{Classify: fault.Classify, Backoff: b}
}

// Run invokes op until it succeeds, fails with a non-retryable fault, or
// maxAttempts is reached. The last error is wrapped so errors.As still finds
// the underlying fault.
func (e *Executor) Run(ctx context.Context, op Func, maxAttempts int) (any, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	classify := e.Classify
	if classify == nil {
		classify = fault.Classify
	}
	sleep := e.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fault.Canceled(err)
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, fault.Canceled(ctx.Err())
		}
		lastErr = err

		c := classify(err)
		if !c.Retryable {
			return nil, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := e.Backoff.Delay(c.Type, attempt)
		logger.Debug("Retrying remote call",
			"attempt", attempt,
			"type", c.Type,
			"delay", delay,
			"error", err,
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, fault.Canceled(err)
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", maxAttempts, lastErr)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
