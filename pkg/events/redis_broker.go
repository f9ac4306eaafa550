package events

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisBroker implements Broker over Redis pub/sub. Every subscribed process
// sees every published payload, which is exactly the fan-out the relay needs.
type RedisBroker struct {
	client *redis.Client
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error {
	sub := b.client.Subscribe(ctx, channels...)
	defer sub.Close()

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		handler(msg.Channel, []byte(msg.Payload))
	}
}
