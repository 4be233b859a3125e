// Package status reports the state of the remote access layer: change
// notifications for the presentation side and the HTTP health endpoints.
package status

import (
	"time"

	"github.com/vietddude/reqtrack/internal/core/domain"
)

// SystemStatus represents the overall health state of the access layer.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report contains the full access layer health report.
type Report struct {
	Status      SystemStatus       `json:"status"`
	Reasons     []string           `json:"reasons,omitempty"`
	Stats       domain.AccessStats `json:"stats"`
	GeneratedAt time.Time          `json:"generated_at"`
}
