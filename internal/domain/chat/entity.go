package chat

import (
	"database/sql"
	"time"

	"housing-chat/internal/domain/party"

	"github.com/google/uuid"
)

// Conversation represents the conversations table. Participant refs are
// stored at creation time; rows created before that change carry NULLs and
// fall back to message-history resolution.
type Conversation struct {
	ID         uuid.UUID
	PartyAID   uuid.NullUUID
	PartyAType sql.NullString
	PartyBID   uuid.NullUUID
	PartyBType sql.NullString
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Conversation) TableName() string { return "conversations" }

// Participants returns the stored participant refs. ok is false for legacy
// rows that predate stored participants.
func (c Conversation) Participants() (a, b party.Ref, ok bool) {
	if !c.PartyAID.Valid || !c.PartyBID.Valid || !c.PartyAType.Valid || !c.PartyBType.Valid {
		return party.Ref{}, party.Ref{}, false
	}
	a = party.Ref{ID: c.PartyAID.UUID, Type: party.Type(c.PartyAType.String)}
	b = party.Ref{ID: c.PartyBID.UUID, Type: party.Type(c.PartyBType.String)}
	return a, b, true
}

// Counterpart returns the stored participant that is not the viewer.
func (c Conversation) Counterpart(viewer party.Ref) (party.Ref, bool) {
	a, b, ok := c.Participants()
	if !ok {
		return party.Ref{}, false
	}
	if a.Equal(viewer) {
		return b, true
	}
	if b.Equal(viewer) {
		return a, true
	}
	return party.Ref{}, false
}

// Member represents the conversation_members table: the denormalized
// membership set of a party. Exactly two members reference a conversation
// over its lifetime.
type Member struct {
	ConversationID uuid.UUID
	PartyID        uuid.UUID
	PartyType      party.Type
	JoinedAt       time.Time
}

func (Member) TableName() string { return "conversation_members" }

// Message represents the messages table. Messages are immutable once
// created. An empty-content message is the conversation-initiation sentinel:
// it records who the conversation was opened with and is never shown to
// users.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	SenderType     party.Type
	Content        string
	CreatedAt      time.Time
}

func (Message) TableName() string { return "messages" }

func (m Message) IsSentinel() bool { return m.Content == "" }

func (m Message) Sender() party.Ref {
	return party.Ref{ID: m.SenderID, Type: m.SenderType}
}
