package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"housing-chat/internal/domain/chat"
	"housing-chat/internal/domain/party"
)

type ResidentRepository interface {
	Create(ctx context.Context, r *party.Resident) error
	GetByID(ctx context.Context, id uuid.UUID) (party.Resident, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]party.Resident, error)
	GetByHouseIDs(ctx context.Context, houseIDs []uuid.UUID) ([]party.Resident, error)

	UpdateOnlineStatus(ctx context.Context, id uuid.UUID, online bool, lastActive time.Time) error
	ResetAllOffline(ctx context.Context) (int64, error)
}

type ManagerRepository interface {
	Create(ctx context.Context, m *party.Manager) error
	GetByID(ctx context.Context, id uuid.UUID) (party.Manager, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]party.Manager, error)

	UpdateOnlineStatus(ctx context.Context, id uuid.UUID, online bool, lastActive time.Time) error
	ResetAllOffline(ctx context.Context) (int64, error)
}

type HouseRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (party.House, error)
	GetByManagerID(ctx context.Context, managerID uuid.UUID) ([]party.House, error)
}

type ConversationRepository interface {
	Create(ctx context.Context, c *chat.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (chat.Conversation, error)
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error

	AddMember(ctx context.Context, m *chat.Member) error
	IsMember(ctx context.Context, conversationID uuid.UUID, ref party.Ref) (bool, error)
	GetPartyConversations(ctx context.Context, ref party.Ref) ([]chat.Conversation, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *chat.Message) error

	// GetLatestMessages returns up to limit messages newest first.
	GetLatestMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]chat.Message, error)
	// GetHistory returns the full conversation history oldest first.
	GetHistory(ctx context.Context, conversationID uuid.UUID) ([]chat.Message, error)
	// GetLatestByConversationIDs returns the newest message per conversation
	// in a single query.
	GetLatestByConversationIDs(ctx context.Context, conversationIDs []uuid.UUID) (map[uuid.UUID]chat.Message, error)
}
