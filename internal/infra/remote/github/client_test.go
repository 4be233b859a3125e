package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vietddude/reqtrack/internal/core/domain"
	"github.com/vietddude/reqtrack/internal/infra/remote/fault"
)

func TestClient_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/acme/widgets/issues", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.Equal(t, "reqtrack-test", r.Header.Get("User-Agent"))
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.Header().Set("X-RateLimit-Reset", "1700000000")
		json.NewEncoder(w).Encode([]map[string]any{{"number": 1}})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/", Token: "secret", UserAgent: "reqtrack-test"})
	resp, err := c.Do(context.Background(), http.MethodGet, "/repos/acme/widgets/issues", nil)
	require.NoError(t, err)
	require.Equal(t, domain.Quota{Limit: 5000, Remaining: 4999, Reset: 1700000000}, resp.RateQuota())

	var issues []struct {
		Number int `json:"number"`
	}
	require.NoError(t, resp.Decode(&issues))
	require.Equal(t, 1, issues[0].Number)
}

func TestClient_PostBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "+1", body["body"])
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	out, err := c.Invoker(http.MethodPost, "repos/acme/widgets/issues/1/comments", map[string]string{"body": "+1"})(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, out.(*Response).StatusCode)
}

func TestClient_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "60")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "1700000600")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"API rate limit exceeded for 10.0.0.1.","documentation_url":"https://docs.github.com"}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Do(context.Background(), http.MethodGet, "/user", nil)
	var f *fault.Fault
	require.True(t, errors.As(err, &f))
	require.Equal(t, http.StatusForbidden, f.StatusCode)
	require.Equal(t, "API rate limit exceeded for 10.0.0.1.", f.Message)
	require.Equal(t, 0, f.Quota.Remaining)
	require.Equal(t, domain.ErrorTypeRateLimit, fault.Classify(err).Type)
}

func TestClient_SecondaryLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "90")
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "4000")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"You have exceeded a secondary rate limit."}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Do(context.Background(), http.MethodGet, "/search/issues", nil)
	var f *fault.Fault
	require.True(t, errors.As(err, &f))
	require.Equal(t, 90*time.Second, f.Quota.RetryAfter)
	require.Equal(t, domain.ErrorTypeAbuseDetected, fault.Classify(err).Type)
}

func TestClient_PlainTextError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).Do(context.Background(), http.MethodGet, "/", nil)
	var f *fault.Fault
	require.True(t, errors.As(err, &f))
	require.Equal(t, "Bad Gateway", f.Message)
	require.Equal(t, domain.ErrorTypeUnknown, fault.Classify(err).Type)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(Config{BaseURL: url}).Do(context.Background(), http.MethodGet, "/", nil)
	require.Equal(t, domain.ErrorTypeRefused, fault.Classify(err).Type)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}).Do(context.Background(), http.MethodGet, "/", nil)
	require.Equal(t, domain.ErrorTypeTimeout, fault.Classify(err).Type)
}

func TestRetryAfter(t *testing.T) {
	c := NewClient(Config{})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Clock = func() time.Time { return now }

	require.Equal(t, 30*time.Second, c.retryAfter("30"))
	require.Equal(t, 2*time.Minute, c.retryAfter(now.Add(2*time.Minute).Format(http.TimeFormat)))
	require.Zero(t, c.retryAfter(""))
	require.Zero(t, c.retryAfter("soon"))
	require.Zero(t, c.retryAfter(now.Add(-time.Minute).Format(http.TimeFormat)))
}
