package domain

import "time"

// ConnectivityState is the probe verdict for a single endpoint.
type ConnectivityState string

const (
	StateUnknown      ConnectivityState = "unknown"
	StateConnected    ConnectivityState = "connected"
	StateSlow         ConnectivityState = "slow"
	StateDisconnected ConnectivityState = "disconnected"
)

// Reachable reports whether the last probe got through.
func (s ConnectivityState) Reachable() bool {
	return s == StateConnected || s == StateSlow
}

// EndpointStatus captures the outcome of the latest probe for one endpoint.
type EndpointStatus struct {
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	State     ConnectivityState `json:"state"`
	Latency   time.Duration     `json:"latency_ns,omitempty"`
	Error     string            `json:"error,omitempty"`
	CheckedAt time.Time         `json:"checked_at"`
}

// LatencyMs returns the probe latency in milliseconds.
func (s EndpointStatus) LatencyMs() int64 {
	return s.Latency.Milliseconds()
}

// ConnectivitySnapshot is the aggregate view written by the connectivity monitor.
type ConnectivitySnapshot struct {
	Online        bool             `json:"online"`
	Known         bool             `json:"known"`
	Endpoints     []EndpointStatus `json:"endpoints"`
	LastCheckedAt time.Time        `json:"last_checked_at"`
}
