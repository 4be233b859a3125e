package status

import (
	"fmt"
	"time"

	"github.com/vietddude/reqtrack/internal/core/domain"
)

// StatsSource provides a snapshot of the access layer.
type StatsSource interface {
	Stats() domain.AccessStats
}

// Reporter turns access layer stats into a health report.
type Reporter struct {
	source StatsSource
	clock  func() time.Time
}

// NewReporter creates a new health reporter.
func NewReporter(source StatsSource) *Reporter {
	return &Reporter{source: source, clock: time.Now}
}

// Report evaluates the current status. Worst case wins.
func (r *Reporter) Report() Report {
	stats := r.source.Stats()
	report := Report{
		Status:      StatusHealthy,
		Stats:       stats,
		GeneratedAt: r.clock().UTC(),
	}

	if stats.Connectivity.Known && !stats.Connectivity.Online {
		report.Status = StatusCritical
		report.Reasons = append(report.Reasons, "remote service unreachable")
	}

	degraded := func(reason string) {
		if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
		report.Reasons = append(report.Reasons, reason)
	}
	if stats.RateLimit != nil && stats.RateLimit.Exceeded {
		degraded(fmt.Sprintf("rate limit exceeded until %s", stats.RateLimit.ResetAt.Format(time.RFC3339)))
	}
	if stats.Cooldown > 0 {
		degraded(fmt.Sprintf("secondary rate limit cooldown %dms", stats.Cooldown))
	}
	if stats.QueueLength > 0 {
		degraded(fmt.Sprintf("%d operations queued", stats.QueueLength))
	}

	return report
}
