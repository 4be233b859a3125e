package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/reqtrack/internal/core/domain"
	"github.com/vietddude/reqtrack/internal/infra/remote/probe"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and fills defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *AppConfig {
	var cfg AppConfig
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.GitHub.BaseURL == "" {
		cfg.GitHub.BaseURL = "https://api.github.com"
	}
	if cfg.GitHub.Timeout == 0 {
		cfg.GitHub.Timeout = 15 * time.Second
	}
	if cfg.GitHub.UserAgent == "" {
		cfg.GitHub.UserAgent = "reqtrack"
	}

	if cfg.Cache.DefaultDuration == 0 {
		cfg.Cache.DefaultDuration = 5 * time.Minute
	}
	if cfg.Cache.StaleRetention == 0 {
		cfg.Cache.StaleRetention = time.Hour
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 10 * time.Second
	}
	if cfg.Retry.DefaultBase == 0 {
		cfg.Retry.DefaultBase = time.Second
	}
	defaults := map[domain.ErrorType]time.Duration{
		domain.ErrorTypeDNS:         1000 * time.Millisecond,
		domain.ErrorTypeTimeout:     2000 * time.Millisecond,
		domain.ErrorTypeReset:       1500 * time.Millisecond,
		domain.ErrorTypeUnreachable: 3000 * time.Millisecond,
	}
	if cfg.Retry.BaseDelays == nil {
		cfg.Retry.BaseDelays = make(map[domain.ErrorType]time.Duration)
	}
	for t, d := range defaults {
		if _, ok := cfg.Retry.BaseDelays[t]; !ok {
			cfg.Retry.BaseDelays[t] = d
		}
	}

	if cfg.Connectivity.Interval == 0 {
		cfg.Connectivity.Interval = 30 * time.Second
	}
	if cfg.Connectivity.SlowThreshold == 0 {
		cfg.Connectivity.SlowThreshold = 3 * time.Second
	}
	if cfg.Connectivity.Timeout == 0 {
		cfg.Connectivity.Timeout = 5 * time.Second
	}
	if len(cfg.Connectivity.Endpoints) == 0 {
		cfg.Connectivity.Endpoints = append([]probe.Endpoint(nil), probe.DefaultEndpoints...)
	}

	if cfg.Queue.DefaultMaxAge == 0 {
		cfg.Queue.DefaultMaxAge = 3 * time.Minute
	}
	if cfg.Queue.MaxRetries == 0 {
		cfg.Queue.MaxRetries = 3
	}

	if cfg.RateLimit.MaxWait == 0 {
		cfg.RateLimit.MaxWait = 15 * time.Minute
	}
	if cfg.RateLimit.CooldownMin == 0 {
		cfg.RateLimit.CooldownMin = 60 * time.Second
	}
	if cfg.RateLimit.CooldownMax == 0 {
		cfg.RateLimit.CooldownMax = 120 * time.Second
	}
}
