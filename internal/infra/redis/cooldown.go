package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/reqtrack/internal/infra/remote/quota"
)

var (
	_ quota.CooldownStore  = (*CooldownStore)(nil)
	_ quota.CooldownReader = (*CooldownStore)(nil)
)

// CooldownStore shares the secondary rate limit cooldown between processes
// using the same token. The window end is stored as epoch milliseconds under
// a key that expires with the window.
type CooldownStore struct {
	rdb   *redis.Client
	key   string
	clock func() time.Time
}

// NewCooldownStore creates a Redis-backed cooldown store.
func NewCooldownStore(client *Client) *CooldownStore {
	return &CooldownStore{
		rdb:   client.rdb,
		key:   client.cfg.CooldownKey,
		clock: time.Now,
	}
}

// Acquire opens the window unless another process already did, and returns
// the effective window end.
func (s *CooldownStore) Acquire(ctx context.Context, until time.Time) (time.Time, error) {
	ttl := until.Sub(s.clock())
	if ttl <= 0 {
		return until, nil
	}

	ok, err := s.rdb.SetNX(ctx, s.key, strconv.FormatInt(until.UnixMilli(), 10), ttl).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("setnx failed: %w", err)
	}
	if ok {
		return until, nil
	}

	val, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET.
		return until, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get failed: %w", err)
	}
	return parseWindowEnd(val, until)
}

func parseWindowEnd(val string, fallback time.Time) (time.Time, error) {
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fallback, fmt.Errorf("invalid cooldown value %q: %w", val, err)
	}
	return time.UnixMilli(ms), nil
}

// Reset clears any open window.
func (s *CooldownStore) Reset(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("del failed: %w", err)
	}
	return nil
}

// Remaining returns the time left in the shared window. Zero when closed.
func (s *CooldownStore) Remaining(ctx context.Context) (time.Duration, error) {
	ttl, err := s.rdb.PTTL(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("pttl failed: %w", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
