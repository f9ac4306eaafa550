package services

import (
	"time"

	"housing-chat/internal/domain/party"

	"github.com/google/uuid"
)

// PlaceholderName renders conversations whose counterpart cannot be
// resolved (no stored participants and no reply yet from the other side).
const PlaceholderName = "New conversation"

// ConversationRow is one sidebar entry: the conversation plus its resolved
// counterpart and preview.
type ConversationRow struct {
	ID            uuid.UUID  `json:"id"`
	PartyID       string     `json:"participant_id,omitempty"`
	PartyType     party.Type `json:"participant_type,omitempty"`
	Name          string     `json:"name"`
	Avatar        string     `json:"avatar,omitempty"`
	IsOnline      bool       `json:"is_online"`
	LastMessage   string     `json:"last_message"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// ContactCard is a suggested new contact, distinct from a conversation row.
type ContactCard struct {
	ID        uuid.UUID  `json:"id"`
	PartyType party.Type `json:"participant_type"`
	Name      string     `json:"name"`
	Avatar    string     `json:"avatar,omitempty"`
	IsOnline  bool       `json:"is_online"`
}

// Sidebar is the aggregated view handed to the HTTP layer.
type Sidebar struct {
	Conversations []ConversationRow `json:"conversations"`
	Contacts      []ContactCard     `json:"contacts"`
}

// MessageView is a message enriched with sender display info.
type MessageView struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	SenderType     party.Type `json:"sender_type"`
	SenderName     string     `json:"sender_name"`
	SenderAvatar   string     `json:"sender_avatar,omitempty"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"timestamp"`
	IsOwn          bool       `json:"is_own"`
}
