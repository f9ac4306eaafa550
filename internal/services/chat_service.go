package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"housing-chat/internal/chatevents"
	"housing-chat/internal/domain/chat"
	"housing-chat/internal/domain/party"
	"housing-chat/internal/presence"
	"housing-chat/internal/relay"
	"housing-chat/internal/repository"
	"housing-chat/internal/storage"
	chat_errors "housing-chat/pkg/errors"
	"housing-chat/pkg/logger"

	"github.com/google/uuid"
)

const defaultPageSize = 50

// ChatService owns conversation lifecycle and the send/receive path.
// Message persistence is the durable source of truth; the relay publish
// that follows it is best-effort and never rolls persistence back.
type ChatService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	directory     *PartyDirectory
	presence      presence.Store
	publisher     *relay.EventPublisher
	avatars       *storage.AvatarResolver
	log           *logger.Logger
}

func NewChatService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	directory *PartyDirectory,
	presenceStore presence.Store,
	publisher *relay.EventPublisher,
	avatars *storage.AvatarResolver,
	log *logger.Logger,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		messages:      messages,
		directory:     directory,
		presence:      presenceStore,
		publisher:     publisher,
		avatars:       avatars,
		log:           log,
	}
}

// GetOrCreate returns the existing conversation between requester and
// target, or creates one. Idempotent from either direction: the requester's
// conversations are scanned for one whose counterpart is the target before
// anything is created.
func (s *ChatService) GetOrCreate(ctx context.Context, requester, target party.Ref) (chat.Conversation, error) {
	if !target.Type.Valid() || target.ID == uuid.Nil {
		return chat.Conversation{}, chat_errors.ErrInvalidInput
	}
	if requester.Equal(target) {
		return chat.Conversation{}, chat_errors.ErrInvalidInput
	}

	// Target must exist before we touch anything.
	if _, err := s.directory.Card(ctx, target); err != nil {
		return chat.Conversation{}, err
	}

	existing, err := s.conversations.GetPartyConversations(ctx, requester)
	if err != nil {
		return chat.Conversation{}, err
	}
	for _, conv := range existing {
		counterpart, ok, err := s.ResolveCounterpart(ctx, conv, requester)
		if err != nil {
			return chat.Conversation{}, err
		}
		if ok && counterpart.Equal(target) {
			s.log.Debugf("found existing conversation %s between %s and %s", conv.ID, requester.ID, target.ID)
			return conv, nil
		}
	}

	now := time.Now()
	conv := chat.Conversation{
		ID:         uuid.New(),
		PartyAID:   uuid.NullUUID{UUID: requester.ID, Valid: true},
		PartyAType: nullString(string(requester.Type)),
		PartyBID:   uuid.NullUUID{UUID: target.ID, Valid: true},
		PartyBType: nullString(string(target.Type)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.conversations.Create(ctx, &conv); err != nil {
		return chat.Conversation{}, err
	}

	for _, ref := range []party.Ref{requester, target} {
		member := &chat.Member{
			ConversationID: conv.ID,
			PartyID:        ref.ID,
			PartyType:      ref.Type,
			JoinedAt:       now,
		}
		if err := s.conversations.AddMember(ctx, member); err != nil {
			return chat.Conversation{}, err
		}
	}

	// The sentinel records who the conversation was opened with. Its sender
	// is the target so that counterpart resolution works before the target
	// has ever replied.
	sentinel := &chat.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       target.ID,
		SenderType:     target.Type,
		Content:        "",
		CreatedAt:      now,
	}
	if err := s.messages.Create(ctx, sentinel); err != nil {
		return chat.Conversation{}, err
	}

	s.log.Infof("created conversation %s between %s %s and %s %s",
		conv.ID, requester.Type, requester.ID, target.Type, target.ID)
	return conv, nil
}

// SendMessage persists the message, then attempts best-effort live delivery
// to the counterpart if they are currently online. The returned view never
// depends on the publish outcome.
func (s *ChatService) SendMessage(ctx context.Context, conversationID uuid.UUID, content string, sender party.Ref) (MessageView, error) {
	if content == "" {
		return MessageView{}, chat_errors.ErrInvalidInput
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return MessageView{}, err
	}

	isMember, err := s.conversations.IsMember(ctx, conversationID, sender)
	if err != nil {
		return MessageView{}, err
	}
	if !isMember {
		return MessageView{}, chat_errors.ErrForbidden
	}

	now := time.Now()
	msg := &chat.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       sender.ID,
		SenderType:     sender.Type,
		Content:        content,
		CreatedAt:      now,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return MessageView{}, err
	}
	if err := s.conversations.Touch(ctx, conversationID, now); err != nil {
		s.log.Errorf("failed to touch conversation %s: %v", conversationID, err)
	}

	senderCard, err := s.directory.Card(ctx, sender)
	if err != nil {
		return MessageView{}, err
	}

	s.notifyCounterpart(ctx, conv, *msg, senderCard)

	return MessageView{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderType:     msg.SenderType,
		SenderName:     senderCard.DisplayName,
		SenderAvatar:   senderCard.AvatarKey,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
		IsOwn:          true,
	}, nil
}

// notifyCounterpart publishes a MESSAGE_SENT event if the other side is
// resolvable and currently online. Everything here is best-effort: a missing
// counterpart or offline recipient just skips the publish, the stored
// message stays visible on their next fetch.
func (s *ChatService) notifyCounterpart(ctx context.Context, conv chat.Conversation, msg chat.Message, senderCard party.Card) {
	counterpart, ok, err := s.ResolveCounterpart(ctx, conv, senderCard.Ref)
	if err != nil {
		s.log.Errorf("failed to resolve counterpart for conversation %s: %v", conv.ID, err)
		return
	}
	if !ok {
		s.log.Debugf("no counterpart resolved for conversation %s, skipping publish", conv.ID)
		return
	}

	online, err := s.presence.IsOnline(ctx, counterpart)
	if err != nil {
		if !errors.Is(err, chat_errors.ErrNotFound) {
			s.log.Errorf("failed to read presence for %s %s: %v", counterpart.Type, counterpart.ID, err)
		}
		return
	}
	if !online {
		s.log.Debugf("counterpart %s %s is offline, skipping publish", counterpart.Type, counterpart.ID)
		return
	}

	s.publisher.PublishMessageEvent(ctx, chatevents.ChatEvent{
		EventType:       chatevents.EventMessageSent,
		TargetPartyID:   counterpart.ID.String(),
		TargetPartyType: counterpart.Type,
		ConversationID:  conv.ID.String(),
		MessageID:       msg.ID.String(),
		SenderID:        senderCard.ID.String(),
		SenderName:      senderCard.DisplayName,
		SenderAvatar:    senderCard.AvatarKey,
		SenderType:      senderCard.Type,
		LastMessage:     msg.Content,
		Timestamp:       msg.CreatedAt,
		IsOnline:        senderCard.IsOnline,
	})
}

// MessagesPage returns up to limit messages in chronological order, with
// initiation sentinels filtered out.
func (s *ChatService) MessagesPage(ctx context.Context, conversationID uuid.UUID, limit int, viewer party.Ref) ([]MessageView, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	isMember, err := s.conversations.IsMember(ctx, conversationID, viewer)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, chat_errors.ErrForbidden
	}

	messages, err := s.messages.GetLatestMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}

	// Newest-first fetch, chronological order out.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	senderRefs := make([]party.Ref, 0, 2)
	seen := make(map[party.Ref]bool)
	for _, m := range messages {
		if m.IsSentinel() {
			continue
		}
		if ref := m.Sender(); !seen[ref] {
			seen[ref] = true
			senderRefs = append(senderRefs, ref)
		}
	}
	cards, err := s.directory.Cards(ctx, senderRefs)
	if err != nil {
		return nil, err
	}

	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		if m.IsSentinel() {
			continue
		}
		view := MessageView{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			SenderID:       m.SenderID,
			SenderType:     m.SenderType,
			Content:        m.Content,
			CreatedAt:      m.CreatedAt,
			IsOwn:          m.Sender().Equal(viewer),
		}
		if card, ok := cards[m.Sender()]; ok {
			view.SenderName = card.DisplayName
			view.SenderAvatar = card.AvatarKey
		}
		views = append(views, view)
	}
	return views, nil
}

// ConversationInfo returns the sidebar-style row for a single conversation.
func (s *ChatService) ConversationInfo(ctx context.Context, conversationID uuid.UUID, viewer party.Ref) (ConversationRow, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return ConversationRow{}, err
	}

	isMember, err := s.conversations.IsMember(ctx, conversationID, viewer)
	if err != nil {
		return ConversationRow{}, err
	}
	if !isMember {
		return ConversationRow{}, chat_errors.ErrForbidden
	}

	row := ConversationRow{ID: conv.ID, Name: PlaceholderName}

	counterpart, ok, err := s.ResolveCounterpart(ctx, conv, viewer)
	if err != nil {
		return ConversationRow{}, err
	}
	if ok {
		if card, err := s.directory.Card(ctx, counterpart); err == nil {
			row.PartyID = card.ID.String()
			row.PartyType = card.Type
			row.Name = card.DisplayName
			row.Avatar = s.avatars.URL(ctx, card.AvatarKey)
			row.IsOnline = card.IsOnline
		}
	}

	latest, err := s.messages.GetLatestMessages(ctx, conversationID, 1)
	if err != nil {
		return ConversationRow{}, err
	}
	if len(latest) > 0 && !latest[0].IsSentinel() {
		row.LastMessage = latest[0].Content
		at := latest[0].CreatedAt
		row.LastMessageAt = &at
	}
	return row, nil
}

// ResolveCounterpart finds the other participant of a conversation as seen
// by the viewer. Stored participant refs are authoritative; conversations
// created before participants were stored fall back to message history: the
// sender of the latest message if it is not the viewer's own, otherwise the
// earliest message authored by someone else (usually the initiation
// sentinel).
func (s *ChatService) ResolveCounterpart(ctx context.Context, conv chat.Conversation, viewer party.Ref) (party.Ref, bool, error) {
	if ref, ok := conv.Counterpart(viewer); ok {
		return ref, true, nil
	}

	latest, err := s.messages.GetLatestMessages(ctx, conv.ID, 1)
	if err != nil {
		return party.Ref{}, false, err
	}
	if len(latest) > 0 && !latest[0].Sender().Equal(viewer) {
		return latest[0].Sender(), true, nil
	}

	history, err := s.messages.GetHistory(ctx, conv.ID)
	if err != nil {
		return party.Ref{}, false, err
	}
	for _, m := range history {
		if !m.Sender().Equal(viewer) {
			return m.Sender(), true, nil
		}
	}
	return party.Ref{}, false, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
