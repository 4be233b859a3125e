package config

import (
	"time"

	"github.com/vietddude/reqtrack/internal/core/domain"
	redisclient "github.com/vietddude/reqtrack/internal/infra/redis"
	"github.com/vietddude/reqtrack/internal/infra/remote/probe"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	GitHub       GitHubConfig       `yaml:"github"`
	Cache        CacheConfig        `yaml:"cache"`
	Retry        RetryConfig        `yaml:"retry"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Queue        QueueConfig        `yaml:"queue"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Redis        redisclient.Config `yaml:"redis"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// GitHubConfig holds REST transport settings.
type GitHubConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Token     string        `yaml:"token"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// CacheConfig holds response cache lifetimes.
type CacheConfig struct {
	DefaultDuration time.Duration            `yaml:"default_duration"`
	Durations       map[string]time.Duration `yaml:"durations"` // per operation kind
	// StaleRetention is how long expired entries stay readable for degraded
	// responses before the pruner drops them. Negative disables pruning.
	StaleRetention time.Duration `yaml:"stale_retention"`
}

// RetryConfig holds retry executor settings.
type RetryConfig struct {
	MaxAttempts int                                 `yaml:"max_attempts"`
	MaxDelay    time.Duration                       `yaml:"max_delay"`
	DefaultBase time.Duration                       `yaml:"default_base"`
	BaseDelays  map[domain.ErrorType]time.Duration `yaml:"base_delays"`
}

// ConnectivityConfig holds connectivity monitor settings.
type ConnectivityConfig struct {
	Interval      time.Duration    `yaml:"interval"`
	SlowThreshold time.Duration    `yaml:"slow_threshold"`
	Timeout       time.Duration    `yaml:"timeout"`
	Endpoints     []probe.Endpoint `yaml:"endpoints"`
}

// QueueConfig holds operation queue settings.
type QueueConfig struct {
	DefaultMaxAge time.Duration            `yaml:"default_max_age"`
	MaxAges       map[string]time.Duration `yaml:"max_ages"` // per operation kind
	MaxRetries    int                      `yaml:"max_retries"`
	DrainRate     float64                  `yaml:"drain_rate"` // operations per second, 0 = unpaced
}

// RateLimitConfig holds rate limit guard settings.
type RateLimitConfig struct {
	MaxWait     time.Duration `yaml:"max_wait"`
	CooldownMin time.Duration `yaml:"cooldown_min"`
	CooldownMax time.Duration `yaml:"cooldown_max"`
}
