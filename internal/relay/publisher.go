package relay

import (
	"context"
	"encoding/json"

	"housing-chat/internal/chatevents"
	"housing-chat/internal/metrics"
	chat_errors "housing-chat/pkg/errors"
	"housing-chat/pkg/events"
	"housing-chat/pkg/logger"
)

// EventPublisher is the write side of the event relay. Publishing is
// best-effort: the message row is already committed by the time an event is
// built, so a broker failure is logged and swallowed, never retried and
// never surfaced to the sender.
type EventPublisher struct {
	broker events.Publisher
	log    *logger.Logger
}

func NewEventPublisher(broker events.Publisher, log *logger.Logger) *EventPublisher {
	return &EventPublisher{broker: broker, log: log}
}

func (p *EventPublisher) PublishMessageEvent(ctx context.Context, event chatevents.ChatEvent) {
	p.publish(ctx, chatevents.ChannelChatEvents, event)
}

func (p *EventPublisher) PublishPresenceEvent(ctx context.Context, event chatevents.ChatEvent) {
	p.publish(ctx, chatevents.ChannelPresenceEvents, event)
}

func (p *EventPublisher) publish(ctx context.Context, channel string, event chatevents.ChatEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Errorf("failed to marshal %s event: %v", event.EventType, err)
		return
	}

	if err := p.broker.Publish(ctx, channel, payload); err != nil {
		metrics.PublishFailures.WithLabelValues(channel).Inc()
		p.log.Errorf("%v: dropping %s event for %s: %v", chat_errors.ErrRelayUnavailable, event.EventType, channel, err)
		return
	}

	metrics.EventsPublished.WithLabelValues(channel).Inc()
	p.log.Debugf("published %s event to %s for party %s", event.EventType, channel, event.TargetPartyID)
}
