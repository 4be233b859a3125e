package domain

import "time"

// Quota is the rate limit metadata attached to a response or fault.
type Quota struct {
	Limit      int
	Remaining  int
	Reset      int64 // epoch seconds
	RetryAfter time.Duration
}

// Known reports whether any quota header was present.
func (q Quota) Known() bool {
	return q.Limit > 0 || q.Reset > 0
}

// ResetAt converts Reset to a time. Zero when unknown.
func (q Quota) ResetAt() time.Time {
	if q.Reset <= 0 {
		return time.Time{}
	}
	return time.Unix(q.Reset, 0).UTC()
}

// RateLimitState is the primary quota as last observed.
type RateLimitState struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	Exceeded  bool      `json:"exceeded"`
}
