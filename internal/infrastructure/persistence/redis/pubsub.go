package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sqlearn/progress-hub/internal/infrastructure/messaging"
)

// PubSub adapts a go-redis client to messaging.PubSubClient.
type PubSub struct {
	client *redis.Client
}

var _ messaging.PubSubClient = (*PubSub)(nil)

// NewPubSub wraps client.
func NewPubSub(client *redis.Client) *PubSub {
	return &PubSub{client: client}
}

// Ping checks the connection.
func (p *PubSub) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Publish publishes payload to channel.
func (p *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// Subscribe subscribes to channel. The returned channel is closed when
// ctx is cancelled.
func (p *PubSub) Subscribe(ctx context.Context, channel string) (<-chan messaging.PubSubMessage, error) {
	sub := p.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan messaging.PubSubMessage, 64)
	go func() {
		defer close(out)
		defer sub.Close()

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- messaging.PubSubMessage{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
