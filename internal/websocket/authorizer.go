package websocket

import (
	"context"
	"strings"

	"housing-chat/internal/chatevents"
	"housing-chat/internal/domain/party"
	"housing-chat/internal/repository"

	"github.com/google/uuid"
)

// ChannelAuthorizer decides whether a principal may subscribe to a hub
// channel. Denials are uniform: a caller probing a conversation they do not
// belong to cannot tell whether it exists.
type ChannelAuthorizer struct {
	conversationRepo repository.ConversationRepository
}

// NewChannelAuthorizer creates a new channel authorizer
func NewChannelAuthorizer(conversationRepo repository.ConversationRepository) *ChannelAuthorizer {
	return &ChannelAuthorizer{conversationRepo: conversationRepo}
}

// CanSubscribe checks if a party is authorized to subscribe to a channel
func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, principal party.Ref, channel string) (bool, error) {
	// A party's own delivery queue - always allowed
	if channel == chatevents.PartyQueue(principal) {
		return true, nil
	}

	// Presence is visible to every authenticated session
	if channel == chatevents.TopicPresence {
		return true, nil
	}

	// Conversation channels - membership required
	if strings.HasPrefix(channel, chatevents.ConversationChannelPrefix) {
		convIDStr := strings.TrimPrefix(channel, chatevents.ConversationChannelPrefix)
		convID, err := uuid.Parse(convIDStr)
		if err != nil {
			return false, nil
		}
		return a.conversationRepo.IsMember(ctx, convID, principal)
	}

	// Other parties' queues and anything unrecognized - deny
	return false, nil
}
