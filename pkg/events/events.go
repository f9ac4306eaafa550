package events

import "context"

// Publisher sends an opaque payload to a named broadcast channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscriber delivers every payload published on the given channels to the
// handler. Subscribe blocks until ctx is cancelled or the broker fails.
type Subscriber interface {
	Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error
}

type Broker interface {
	Publisher
	Subscriber
}
