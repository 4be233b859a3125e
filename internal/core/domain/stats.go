package domain

// AccessStats is a point-in-time view of the access layer.
type AccessStats struct {
	CacheEntries int                  `json:"cache_entries"`
	QueueLength  int                  `json:"queue_length"`
	RateLimit    *RateLimitState      `json:"rate_limit,omitempty"`
	Cooldown     int64                `json:"cooldown_remaining_ms"`
	Connectivity ConnectivitySnapshot `json:"connectivity"`
}
