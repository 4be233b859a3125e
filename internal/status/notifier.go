package status

import (
	"log/slog"

	"github.com/vietddude/reqtrack/internal/core/domain"
	"github.com/vietddude/reqtrack/internal/metrics"
)

// Notifier receives state changes from the access layer. Calls are fire and
// forget; implementations must not block.
type Notifier interface {
	ConnectivityChanged(snapshot domain.ConnectivitySnapshot)
	RateLimitExceeded(state domain.RateLimitState)
	QueueLengthChanged(n int)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) ConnectivityChanged(domain.ConnectivitySnapshot) {}
func (Nop) RateLimitExceeded(domain.RateLimitState)         {}
func (Nop) QueueLengthChanged(int)                          {}

// Multi fans notifications out to several notifiers in order.
type Multi []Notifier

func (m Multi) ConnectivityChanged(s domain.ConnectivitySnapshot) {
	for _, n := range m {
		n.ConnectivityChanged(s)
	}
}

func (m Multi) RateLimitExceeded(s domain.RateLimitState) {
	for _, n := range m {
		n.RateLimitExceeded(s)
	}
}

func (m Multi) QueueLengthChanged(l int) {
	for _, n := range m {
		n.QueueLengthChanged(l)
	}
}

// OrNop returns n, or Nop when n is nil.
func OrNop(n Notifier) Notifier {
	if n == nil {
		return Nop{}
	}
	return n
}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) ConnectivityChanged(s domain.ConnectivitySnapshot) {
	if s.Online {
		n.logger.Info("Remote service reachable", "endpoints", len(s.Endpoints))
		return
	}
	n.logger.Warn("Remote service unreachable", "endpoints", len(s.Endpoints))
}

func (n *LogNotifier) RateLimitExceeded(s domain.RateLimitState) {
	n.logger.Warn("Rate limit exceeded",
		"limit", s.Limit,
		"reset_at", s.ResetAt.Format("15:04:05"),
	)
}

func (n *LogNotifier) QueueLengthChanged(l int) {
	n.logger.Debug("Operation queue changed", "length", l)
}

// MetricsNotifier mirrors notifications into prometheus gauges.
type MetricsNotifier struct{}

func (MetricsNotifier) ConnectivityChanged(s domain.ConnectivitySnapshot) {
	if s.Online {
		metrics.ConnectivityOnline.Set(1)
	} else {
		metrics.ConnectivityOnline.Set(0)
	}
	for _, ep := range s.Endpoints {
		metrics.EndpointLatency.WithLabelValues(ep.Name).Set(ep.Latency.Seconds())
	}
}

func (MetricsNotifier) RateLimitExceeded(s domain.RateLimitState) {
	metrics.RateLimitExceededTotal.Inc()
	metrics.RateLimitRemaining.Set(float64(s.Remaining))
}

func (MetricsNotifier) QueueLengthChanged(l int) {
	metrics.QueueLength.Set(float64(l))
}
