// Package retry re-runs failed remote calls with per-fault exponential
// backoff.
package retry

import (
	"time"

	"github.com/vietddude/reqtrack/internal/core/domain"
)

// DefaultBaseDelays are the first-retry delays per fault type.
var DefaultBaseDelays = map[domain.ErrorType]time.Duration{
	domain.ErrorTypeDNS:         1000 * time.Millisecond,
	domain.ErrorTypeTimeout:     2000 * time.Millisecond,
	domain.ErrorTypeReset:       1500 * time.Millisecond,
	domain.ErrorTypeUnreachable: 3000 * time.Millisecond,
}

const (
	DefaultBase     = 1000 * time.Millisecond
	DefaultMaxDelay = 10 * time.Second
)

// Backoff computes min(base(type) * 2^(attempt-1), MaxDelay).
type Backoff struct {
	BaseDelays  map[domain.ErrorType]time.Duration
	DefaultBase time.Duration
	MaxDelay    time.Duration
}

// DefaultBackoff returns the standard schedule.
func DefaultBackoff() Backoff {
	return Backoff{
		BaseDelays:  DefaultBaseDelays,
		DefaultBase: DefaultBase,
		MaxDelay:    DefaultMaxDelay,
	}
}

// Delay returns the wait before retry number attempt (1-based) of a fault of
// type t.
func (b Backoff) Delay(t domain.ErrorType, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base, ok := b.BaseDelays[t]
	if !ok {
		base = b.DefaultBase
	}
	if base <= 0 {
		base = DefaultBase
	}
	limit := b.MaxDelay
	if limit <= 0 {
		limit = DefaultMaxDelay
	}

	delay := base
	for i := 1; i < attempt; i++ {
		if delay >= limit {
			break
		}
		delay *= 2
	}
	if delay > limit {
		delay = limit
	}
	return delay
}
