package events

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel events are relayed on when none is configured.
const DefaultChannel = "crate:events"

// RedisPublisher relays events through a Redis pub/sub channel so every process sharing the library sees them.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	logger  *log.Logger
}

// NewRedisPublisher wraps an existing client.
func NewRedisPublisher(rdb *redis.Client, channel string, logger *log.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{rdb: rdb, channel: channel, logger: logger}
}

// DialRedis parses url, connects and verifies the server responds.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return rdb, nil
}

// Channel returns the channel events are published on.
func (p *RedisPublisher) Channel() string { return p.channel }

// Publish implements [Publisher]. A nil client makes it a no-op.
func (p *RedisPublisher) Publish(ctx context.Context, e Event) {
	if p.rdb == nil {
		return
	}

	data, err := e.encode()
	if err != nil {
		p.logger.Error("failed to encode event", "kind", e.Kind, "error", err)
		return
	}

	if err := p.rdb.Publish(ctx, p.channel, string(data)).Err(); err != nil {
		p.logger.Warn("failed to publish event", "kind", e.Kind, "channel", p.channel, "error", err)
	}
}

// Subscribe forwards every message on the channel into hub until ctx is cancelled.
//
// The returned channel is closed once the subscription has been confirmed by the server, so callers
// can publish knowing the message will be observed.
func (p *RedisPublisher) Subscribe(ctx context.Context, hub *Hub) (<-chan struct{}, error) {
	sub := p.rdb.Subscribe(ctx, p.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", p.channel, err)
	}

	ready := make(chan struct{})
	go func() {
		defer sub.Close()
		close(ready)

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				hub.Broadcast(ctx, []byte(msg.Payload))
			}
		}
	}()
	return ready, nil
}
