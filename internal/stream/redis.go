package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher pushes stream events to redis pub/sub channels for
// connected dashboard clients. The client lifecycle is managed by the
// caller.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher wraps an established redis client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish marshals the event and publishes it on the named channel.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}
