package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vietddude/reqtrack/internal/core/domain"
)

// =============================================================================
// Mocks
// =============================================================================

type stubSource struct {
	stats domain.AccessStats
}

func (s *stubSource) Stats() domain.AccessStats { return s.stats }

type recordingNotifier struct {
	snapshots []domain.ConnectivitySnapshot
	limits    []domain.RateLimitState
	lengths   []int
}

func (r *recordingNotifier) ConnectivityChanged(s domain.ConnectivitySnapshot) {
	r.snapshots = append(r.snapshots, s)
}
func (r *recordingNotifier) RateLimitExceeded(s domain.RateLimitState) { r.limits = append(r.limits, s) }
func (r *recordingNotifier) QueueLengthChanged(n int)                  { r.lengths = append(r.lengths, n) }

// =============================================================================
// Tests
// =============================================================================

func TestReporter_Healthy(t *testing.T) {
	src := &stubSource{stats: domain.AccessStats{
		Connectivity: domain.ConnectivitySnapshot{Online: true, Known: true},
	}}
	report := NewReporter(src).Report()
	require.Equal(t, StatusHealthy, report.Status)
	require.Empty(t, report.Reasons)
}

func TestReporter_UnknownConnectivityIsHealthy(t *testing.T) {
	report := NewReporter(&stubSource{}).Report()
	require.Equal(t, StatusHealthy, report.Status)
}

func TestReporter_Degraded(t *testing.T) {
	src := &stubSource{stats: domain.AccessStats{
		QueueLength: 2,
		RateLimit: &domain.RateLimitState{
			Limit:    5000,
			ResetAt:  time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC),
			Exceeded: true,
		},
		Connectivity: domain.ConnectivitySnapshot{Online: true, Known: true},
	}}
	report := NewReporter(src).Report()
	require.Equal(t, StatusDegraded, report.Status)
	require.Len(t, report.Reasons, 2)
}

func TestReporter_Critical(t *testing.T) {
	src := &stubSource{stats: domain.AccessStats{
		QueueLength:  1,
		Connectivity: domain.ConnectivitySnapshot{Online: false, Known: true},
	}}
	report := NewReporter(src).Report()
	require.Equal(t, StatusCritical, report.Status)
	require.Contains(t, report.Reasons, "remote service unreachable")
}

func TestServer_Health(t *testing.T) {
	src := &stubSource{stats: domain.AccessStats{
		Connectivity: domain.ConnectivitySnapshot{Online: false, Known: true},
	}}
	srv := NewServer(NewReporter(src), ":0")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "critical", body["status"])
	require.Equal(t, []any{"remote service unreachable"}, body["reasons"])

	src.stats.Connectivity.Online = true
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	require.Equal(t, StatusHealthy, report.Status)
	require.True(t, report.Stats.Connectivity.Online)
}

func TestServer_Ready(t *testing.T) {
	src := &stubSource{stats: domain.AccessStats{
		QueueLength:  1,
		Connectivity: domain.ConnectivitySnapshot{Online: true, Known: true},
	}}
	srv := NewServer(NewReporter(src), ":0")

	// Degraded is alive but not ready.
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	src.stats.QueueLength = 0
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ExtraRouteAndListen(t *testing.T) {
	extra := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	})
	srv := NewServer(NewReporter(&stubSource{}), "127.0.0.1:0", WithRoute("GET /queue", extra))
	require.Equal(t, "127.0.0.1:0", srv.Addr())

	require.NoError(t, srv.Listen())
	require.NotEqual(t, "127.0.0.1:0", srv.Addr())
	go srv.Start()
	defer srv.Stop(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/queue")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &recordingNotifier{}, &recordingNotifier{}
	n := Multi{a, b, Nop{}, MetricsNotifier{}, NewLogNotifier(nil)}

	n.ConnectivityChanged(domain.ConnectivitySnapshot{Online: true})
	n.RateLimitExceeded(domain.RateLimitState{Limit: 60})
	n.QueueLengthChanged(3)

	for _, r := range []*recordingNotifier{a, b} {
		require.Len(t, r.snapshots, 1)
		require.Len(t, r.limits, 1)
		require.Equal(t, []int{3}, r.lengths)
	}
	require.IsType(t, Nop{}, OrNop(nil))
}
