package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultCooldownKey   = "reqtrack:cooldown"
	DefaultEventsChannel = "reqtrack:events"
)

// Client wraps Redis operations shared between reqtrack processes.
type Client struct {
	rdb *redis.Client
	cfg Config
}

// Config holds Redis connection configuration.
type Config struct {
	URL           string `yaml:"url"`
	Password      string `yaml:"password"`
	CooldownKey   string `yaml:"cooldown_key"`
	EventsChannel string `yaml:"events_channel"`
}

// Enabled reports whether a Redis URL is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newClient(rdb, cfg), nil
}

func newClient(rdb *redis.Client, cfg Config) *Client {
	if cfg.CooldownKey == "" {
		cfg.CooldownKey = DefaultCooldownKey
	}
	if cfg.EventsChannel == "" {
		cfg.EventsChannel = DefaultEventsChannel
	}
	return &Client{rdb: rdb, cfg: cfg}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
