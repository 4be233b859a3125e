package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
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

func newTestCache() (*Cache[string], *fakeClock) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[string]()
	c.Clock = clk.Now
	return c, clk
}

func TestCache_Freshness(t *testing.T) {
	c, clk := newTestCache()
	require.True(t, c.Set("issues", "v1", 5*time.Minute))

	clk.Advance(5*time.Minute - time.Millisecond)
	v, ok := c.Get("issues", false)
	require.True(t, ok)
	require.Equal(t, "v1", v)

	// Expiry is exclusive: now == ExpiresAt is stale.
	clk.Advance(time.Millisecond)
	_, ok = c.Get("issues", true)
	require.True(t, ok, "stale read allowed")
	require.Equal(t, 1, c.Len())

	_, ok = c.Get("issues", false)
	require.False(t, ok)
	require.Equal(t, 0, c.Len(), "stale entry evicted on strict read")
}

func TestCache_Lookup(t *testing.T) {
	c, clk := newTestCache()
	c.Set("k", "v", time.Second)

	e, stale, ok := c.Lookup("k")
	require.True(t, ok)
	require.False(t, stale)
	require.Equal(t, e.StoredAt.Add(time.Second), e.ExpiresAt)

	clk.Advance(2 * time.Second)
	e, stale, ok = c.Lookup("k")
	require.True(t, ok)
	require.True(t, stale)
	require.Equal(t, "v", e.Value)
	require.Equal(t, 1, c.Len())

	_, _, ok = c.Lookup("missing")
	require.False(t, ok)
}

func TestCache_SetRejectsNonPositiveDuration(t *testing.T) {
	c, _ := newTestCache()
	require.False(t, c.Set("k", "v", 0))
	require.False(t, c.Set("k", "v", -time.Second))
	_, ok := c.Get("k", true)
	require.False(t, ok)
}

func TestCache_Overwrite(t *testing.T) {
	c, clk := newTestCache()
	c.Set("k", "old", time.Second)
	clk.Advance(2 * time.Second)
	c.Set("k", "new", time.Minute)

	v, ok := c.Get("k", false)
	require.True(t, ok)
	require.Equal(t, "new", v)
}

func TestCache_DeleteClear(t *testing.T) {
	c, _ := newTestCache()
	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)

	c.Delete("a")
	_, ok := c.Get("a", true)
	require.False(t, ok)
	require.Equal(t, 1, c.Len())

	c.Clear()
	require.Equal(t, 0, c.Len())
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("k", i*j, time.Minute)
				c.Get("k", false)
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, c.Len())
}

func TestCache_Prune(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := New[string]()
	c.Clock = func() time.Time { return now }

	c.Set("old", "a", time.Minute)
	c.Set("recent", "b", time.Minute)
	c.Set("fresh", "c", time.Hour)

	now = now.Add(61 * time.Minute)
	c.Set("recent", "b", time.Minute) // re-stored, expired 0s ago at prune time
	now = now.Add(time.Minute)

	require.Equal(t, 1, c.Prune(30*time.Minute))
	_, ok := c.Get("old", true)
	require.False(t, ok)
	_, ok = c.Get("recent", true)
	require.True(t, ok)
	require.Equal(t, 2, c.Len())
}
