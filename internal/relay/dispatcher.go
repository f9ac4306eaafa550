package relay

import (
	"context"
	"encoding/json"
	"errors"

	"housing-chat/internal/chatevents"
	"housing-chat/internal/domain/party"
	"housing-chat/internal/metrics"
	chat_errors "housing-chat/pkg/errors"
	"housing-chat/pkg/events"
	"housing-chat/pkg/logger"
)

// LocalPublisher fans a payload out to every locally connected session
// subscribed to the channel.
type LocalPublisher interface {
	Broadcast(channel string, payload []byte)
}

// PresenceReader reports whether a party currently has a live session.
// The dispatcher only reads presence; writes stay with the session layer.
type PresenceReader interface {
	IsOnline(ctx context.Context, ref party.Ref) (bool, error)
}

// Dispatcher consumes relay events from the broker and routes them to the
// sessions this process hosts. Every process subscribes to both channels;
// chat events are filtered down to the party type the process serves, while
// presence events fan out to everyone.
type Dispatcher struct {
	hostedType party.Type
	broker     events.Subscriber
	presence   PresenceReader
	hub        LocalPublisher
	log        *logger.Logger
}

func NewDispatcher(hostedType party.Type, broker events.Subscriber, presenceStore PresenceReader, hub LocalPublisher, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		hostedType: hostedType,
		broker:     broker,
		presence:   presenceStore,
		hub:        hub,
		log:        log,
	}
}

// Run blocks consuming broker events until ctx is cancelled. Handler errors
// are logged and swallowed; a bad event never stops the stream.
func (d *Dispatcher) Run(ctx context.Context) error {
	channels := []string{chatevents.ChannelChatEvents, chatevents.ChannelPresenceEvents}
	d.log.Infof("relay dispatcher consuming %v for %s sessions", channels, d.hostedType)
	return d.broker.Subscribe(ctx, channels, d.handle)
}

func (d *Dispatcher) handle(channel string, payload []byte) {
	metrics.EventsConsumed.WithLabelValues(channel).Inc()

	switch channel {
	case chatevents.ChannelPresenceEvents:
		// Presence changes are interesting to every connected session
		// regardless of party type.
		d.hub.Broadcast(chatevents.TopicPresence, payload)

	case chatevents.ChannelChatEvents:
		d.handleChatEvent(payload)

	default:
		d.log.Warnf("relay event on unexpected channel %s", channel)
	}
}

func (d *Dispatcher) handleChatEvent(payload []byte) {
	var event chatevents.ChatEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		metrics.EventsDiscarded.WithLabelValues(chatevents.ChannelChatEvents, "malformed").Inc()
		d.log.Errorf("failed to decode chat event: %v", err)
		return
	}

	target, err := event.Target()
	if err != nil {
		metrics.EventsDiscarded.WithLabelValues(chatevents.ChannelChatEvents, "malformed").Inc()
		d.log.Errorf("chat event with invalid target: %v", err)
		return
	}

	// Each process only hosts sessions of a single party type. Events for
	// the other type belong to the sibling deployment.
	if target.Type != d.hostedType {
		metrics.EventsDiscarded.WithLabelValues(chatevents.ChannelChatEvents, "not_hosted").Inc()
		return
	}

	// The publish-side presence check is a snapshot; the target may have
	// disconnected while the event was in flight. Re-check before delivery.
	online, err := d.presence.IsOnline(context.Background(), target)
	if err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			metrics.EventsDiscarded.WithLabelValues(chatevents.ChannelChatEvents, "unknown_party").Inc()
			return
		}
		metrics.EventsDiscarded.WithLabelValues(chatevents.ChannelChatEvents, "presence_error").Inc()
		d.log.Errorf("failed to check presence for %s %s: %v", target.Type, target.ID, err)
		return
	}
	if !online {
		metrics.EventsDiscarded.WithLabelValues(chatevents.ChannelChatEvents, "offline").Inc()
		d.log.Debugf("discarding chat event for offline %s %s", target.Type, target.ID)
		return
	}

	d.hub.Broadcast(chatevents.PartyQueue(target), payload)
}
