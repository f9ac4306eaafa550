package chatevents

import (
	"fmt"
	"time"

	"housing-chat/internal/domain/party"

	"github.com/google/uuid"
)

// Broker channels shared by every service process. chat_events carries
// MESSAGE_SENT envelopes addressed to a single party; presence_events
// carries online/offline transitions interesting to everyone.
const (
	ChannelChatEvents     = "chat_events"
	ChannelPresenceEvents = "presence_events"
)

const (
	EventMessageSent  = "MESSAGE_SENT"
	EventPartyOnline  = "USER_ONLINE"
	EventPartyOffline = "USER_OFFLINE"
)

// ChatEvent is the transient wire envelope for both channels. It is never
// persisted; the stored message is the source of truth and the event is a
// best-effort latency optimization for connected recipients.
type ChatEvent struct {
	EventType       string     `json:"event_type"`
	TargetPartyID   string     `json:"target_party_id"`
	TargetPartyType party.Type `json:"target_party_type"`
	ConversationID  string     `json:"conversation_id,omitempty"`
	MessageID       string     `json:"message_id,omitempty"`
	SenderID        string     `json:"sender_id,omitempty"`
	SenderName      string     `json:"sender_name,omitempty"`
	SenderAvatar    string     `json:"sender_avatar,omitempty"`
	SenderType      party.Type `json:"sender_type,omitempty"`
	LastMessage     string     `json:"last_message,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
	IsOnline        bool       `json:"is_online"`
}

func (e ChatEvent) Target() (party.Ref, error) {
	id, err := uuid.Parse(e.TargetPartyID)
	if err != nil {
		return party.Ref{}, err
	}
	return party.Ref{ID: id, Type: e.TargetPartyType}, nil
}

// Hub channel naming. PartyQueue is a per-party addressed delivery channel;
// TopicPresence is visible to every connected session.
const (
	TopicPresence             = "topic:presence"
	ConversationChannelPrefix = "channel:conversation:"
	partyQueueFormat          = "channel:party:%s:%s"
)

func PartyQueue(ref party.Ref) string {
	return fmt.Sprintf(partyQueueFormat, ref.Type, ref.ID)
}

func ConversationChannel(id uuid.UUID) string {
	return ConversationChannelPrefix + id.String()
}
