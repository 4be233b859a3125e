package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RemoteCallsTotal tracks coordinator outcomes per operation kind
	RemoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqtrack_remote_calls_total",
			Help: "Total number of remote calls by outcome",
		},
		[]string{"kind", "result"},
	)

	// RemoteFaultsTotal tracks classified faults
	RemoteFaultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqtrack_remote_faults_total",
			Help: "Total number of classified remote faults",
		},
		[]string{"type"},
	)

	// RemoteCallLatency tracks remote call latency including retries
	RemoteCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reqtrack_remote_call_latency_seconds",
			Help:    "Remote call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// CacheLookupsTotal tracks response cache hits and misses
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqtrack_cache_lookups_total",
			Help: "Total number of response cache lookups",
		},
		[]string{"result"},
	)

	// QueueLength tracks deferred operations waiting for connectivity
	QueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reqtrack_queue_length",
			Help: "Number of queued operations",
		},
	)

	// QueueDrainedTotal tracks drain outcomes
	QueueDrainedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqtrack_queue_drained_total",
			Help: "Total number of queued operations processed by drains",
		},
		[]string{"result"},
	)

	// RateLimitRemaining tracks the last observed primary quota
	RateLimitRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reqtrack_rate_limit_remaining",
			Help: "Remaining requests in the current rate limit window",
		},
	)

	// RateLimitExceededTotal counts transitions into the exceeded state
	RateLimitExceededTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reqtrack_rate_limit_exceeded_total",
			Help: "Total number of times the rate limit was exhausted",
		},
	)

	// ConnectivityOnline is 1 when at least one endpoint is reachable
	ConnectivityOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reqtrack_connectivity_online",
			Help: "Whether the remote service is reachable",
		},
	)

	// EndpointLatency tracks probe latency per endpoint
	EndpointLatency = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reqtrack_endpoint_latency_seconds",
			Help: "Latency of the last connectivity probe in seconds",
		},
		[]string{"endpoint"},
	)
)
