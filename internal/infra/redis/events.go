package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/reqtrack/internal/core/domain"
)

// Event types published on the events channel.
const (
	EventConnectivity = "connectivity_changed"
	EventRateLimit    = "rate_limit_exceeded"
	EventQueueLength  = "queue_length_changed"
)

const publishTimeout = 2 * time.Second

// Event is the JSON envelope published for every notification.
type Event struct {
	Type    string          `json:"type"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// EventPublisher publishes access layer notifications on a Redis channel so
// other processes can present them. Publishing never blocks the caller.
type EventPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
	clock   func() time.Time
}

// NewEventPublisher creates a publisher on the configured channel.
func NewEventPublisher(client *Client, logger *slog.Logger) *EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{
		rdb:     client.rdb,
		channel: client.cfg.EventsChannel,
		logger:  logger,
		clock:   time.Now,
	}
}

func (p *EventPublisher) ConnectivityChanged(s domain.ConnectivitySnapshot) {
	p.publish(EventConnectivity, s)
}

func (p *EventPublisher) RateLimitExceeded(s domain.RateLimitState) {
	p.publish(EventRateLimit, s)
}

func (p *EventPublisher) QueueLengthChanged(n int) {
	p.publish(EventQueueLength, map[string]int{"length": n})
}

func (p *EventPublisher) publish(typ string, payload any) {
	data, err := encodeEvent(typ, p.clock(), payload)
	if err != nil {
		p.logger.Error("Failed to encode event", "type", typ, "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
			p.logger.Warn("Failed to publish event", "type", typ, "error", err)
		}
	}()
}

func encodeEvent(typ string, at time.Time, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(Event{Type: typ, At: at.UTC(), Payload: raw})
}

// DecodeEvent parses a published message.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}
