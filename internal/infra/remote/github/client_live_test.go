package github

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLive_RateLimitEndpoint hits the real API. /rate_limit does not count
// against the primary quota.
func TestLive_RateLimitEndpoint(t *testing.T) {
	if os.Getenv("E2E_LIVE") == "" {
		t.Skip("Skipping live E2E test. Set E2E_LIVE=true to run.")
	}

	c := NewClient(Config{Token: os.Getenv("GITHUB_TOKEN")})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := c.Do(ctx, http.MethodGet, "/rate_limit", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	q := resp.RateQuota()
	require.True(t, q.Known())
	require.Positive(t, q.Limit)
	require.LessOrEqual(t, q.Remaining, q.Limit)
	require.True(t, q.ResetAt().After(time.Now().Add(-time.Minute)))
}
