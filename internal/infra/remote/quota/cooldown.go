package quota

import (
	"context"
	"sync"
	"time"
)

// CooldownStore holds the shared abuse cooldown window.
type CooldownStore interface {
	// Acquire opens a window ending at until unless one is already open, and
	// returns the end of the effective window.
	Acquire(ctx context.Context, until time.Time) (time.Time, error)
}

// CooldownReader is implemented by stores that can report a window opened
// by another client.
type CooldownReader interface {
	Remaining(ctx context.Context) (time.Duration, error)
}

// MemoryCooldownStore shares the window within one process.
type MemoryCooldownStore struct {
	mu    sync.Mutex
	until time.Time
	clock func() time.Time
}

// NewMemoryCooldownStore creates an in-process cooldown store. A nil clock
// uses time.Now.
func NewMemoryCooldownStore(clock func() time.Time) *MemoryCooldownStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryCooldownStore{clock: clock}
}

func (s *MemoryCooldownStore) Acquire(_ context.Context, until time.Time) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.until.After(s.clock()) {
		return s.until, nil
	}
	s.until = until
	return until, nil
}

func (s *MemoryCooldownStore) Remaining(_ context.Context) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	left := s.until.Sub(s.clock())
	if left < 0 {
		return 0, nil
	}
	return left, nil
}
