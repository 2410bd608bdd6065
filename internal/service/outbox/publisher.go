package outbox

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Publisher delivers a dispatched event to its subscribers. Delivery is
// expected to be idempotent on the consumer side; the dispatcher may
// replay an event after a crash between publish and mark-completed.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type redisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher publishes events on Redis pub/sub channels.
func NewRedisPublisher(client *redis.Client) Publisher {
	return &redisPublisher{client: client}
}

func (p *redisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}
