package repository

import (
	"context"
	"errors"

	"housing-chat/internal/domain/chat"
	chat_errors "housing-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *chat.Message) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return chat_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) GetLatestMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]chat.Message, error) {
	var messages []chat.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) GetHistory(ctx context.Context, conversationID uuid.UUID) ([]chat.Message, error) {
	var messages []chat.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) GetLatestByConversationIDs(ctx context.Context, conversationIDs []uuid.UUID) (map[uuid.UUID]chat.Message, error) {
	result := make(map[uuid.UUID]chat.Message)
	if len(conversationIDs) == 0 {
		return result, nil
	}

	var messages []chat.Message
	err := r.db.WithContext(ctx).
		Raw(`SELECT * FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY conversation_id ORDER BY created_at DESC) AS rn
			FROM messages
			WHERE conversation_id IN ?
		) ranked WHERE rn = 1`, conversationIDs).
		Scan(&messages).Error
	if err != nil {
		return nil, err
	}

	for _, m := range messages {
		result[m.ConversationID] = m
	}
	return result, nil
}
