package redis

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vietddude/reqtrack/internal/core/domain"
)

func TestEncodeEvent(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	data, err := encodeEvent(EventRateLimit, at, domain.RateLimitState{Limit: 60, Exceeded: true})
	require.NoError(t, err)

	e, err := DecodeEvent(data)
	require.NoError(t, err)
	require.Equal(t, EventRateLimit, e.Type)
	require.True(t, e.At.Equal(at))

	var state domain.RateLimitState
	require.NoError(t, json.Unmarshal(e.Payload, &state))
	require.Equal(t, 60, state.Limit)
	require.True(t, state.Exceeded)

	_, err = DecodeEvent([]byte("{"))
	require.Error(t, err)
}

func TestParseWindowEnd(t *testing.T) {
	fallback := time.UnixMilli(1)
	got, err := parseWindowEnd("1700000000123", fallback)
	require.NoError(t, err)
	require.Equal(t, int64(1700000000123), got.UnixMilli())

	got, err = parseWindowEnd("soon", fallback)
	require.Error(t, err)
	require.Equal(t, fallback, got)
}

func TestConfigDefaults(t *testing.T) {
	require.False(t, Config{}.Enabled())
	c := newClient(nil, Config{URL: "redis://localhost:6379"})
	require.Equal(t, DefaultCooldownKey, c.cfg.CooldownKey)
	require.Equal(t, DefaultEventsChannel, c.cfg.EventsChannel)
}

func TestCooldownStore_Live(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping live redis test. Set REDIS_URL to run.")
	}

	client, err := NewClient(Config{URL: url, CooldownKey: "reqtrack:test:cooldown"})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	client.rdb.Del(ctx, "reqtrack:test:cooldown")

	a := NewCooldownStore(client)
	b := NewCooldownStore(client)

	first := time.Now().Add(2 * time.Second).Truncate(time.Millisecond)
	got, err := a.Acquire(ctx, first)
	require.NoError(t, err)
	require.True(t, got.Equal(first))

	got, err = b.Acquire(ctx, first.Add(time.Second))
	require.NoError(t, err)
	require.True(t, got.Equal(first), "second process joins the open window")
}
