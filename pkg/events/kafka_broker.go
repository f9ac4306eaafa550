package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// KafkaBroker implements Broker over Kafka topics. Each process instance
// consumes with its own group id so every instance observes every event,
// matching the broadcast semantics of the Redis backend.
type KafkaBroker struct {
	brokers []string
	groupID string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func NewKafkaBroker(brokers []string) *KafkaBroker {
	return &KafkaBroker{
		brokers: brokers,
		groupID: "housing-chat-" + uuid.New().String(),
		writers: make(map[string]*kafka.Writer),
	}
}

func (b *KafkaBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.writer(channel).WriteMessages(ctx, kafka.Message{Value: payload})
}

func (b *KafkaBroker) Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error {
	errc := make(chan error, len(channels))

	for _, channel := range channels {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     b.brokers,
			GroupID:     b.groupID + "-" + channel,
			Topic:       channel,
			StartOffset: kafka.LastOffset,
		})

		go func(channel string, reader *kafka.Reader) {
			defer reader.Close()
			for {
				msg, err := reader.ReadMessage(ctx)
				if err != nil {
					errc <- err
					return
				}
				handler(channel, msg.Value)
			}
		}(channel, reader)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errc:
		return err
	}
}

func (b *KafkaBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range b.writers {
		_ = w.Close()
	}
	return nil
}

func (b *KafkaBroker) writer(channel string) *kafka.Writer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.writers[channel]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(b.brokers...),
		Topic:                  channel,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	b.writers[channel] = w
	return w
}
