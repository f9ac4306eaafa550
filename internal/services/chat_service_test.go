package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"housing-chat/internal/chatevents"
	"housing-chat/internal/domain/party"
	"housing-chat/internal/relay"
	"housing-chat/internal/storage"
	chat_errors "housing-chat/pkg/errors"
	"housing-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatFixture struct {
	service       *ChatService
	conversations *fakeConversationRepo
	messages      *fakeMessageRepo
	residents     *fakeResidentRepo
	managers      *fakeManagerRepo
	broker        *fakeBroker
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	log := logger.New(logger.DevelopmentMode)
	residents := newFakeResidentRepo()
	managers := newFakeManagerRepo()
	conversations := newFakeConversationRepo()
	messages := newFakeMessageRepo()
	broker := newFakeBroker()

	directory := NewPartyDirectory(residents, managers)
	publisher := relay.NewEventPublisher(broker, log)
	presenceStore := &fakePresence{residents: residents, managers: managers}

	return &chatFixture{
		service:       NewChatService(conversations, messages, directory, presenceStore, publisher, nil, log),
		conversations: conversations,
		messages:      messages,
		residents:     residents,
		managers:      managers,
		broker:        broker,
	}
}

func (f *chatFixture) addResident(t *testing.T, name string, online bool) party.Ref {
	t.Helper()
	r := party.Resident{ID: uuid.New(), FullName: name, Status: party.StatusActive, IsOnline: online}
	require.NoError(t, f.residents.Create(context.Background(), &r))
	return party.Ref{ID: r.ID, Type: party.TypeResident}
}

func (f *chatFixture) addManager(t *testing.T, name string, online bool) party.Ref {
	t.Helper()
	m := party.Manager{ID: uuid.New(), FullName: name, Status: party.StatusActive, IsOnline: online}
	require.NoError(t, f.managers.Create(context.Background(), &m))
	return party.Ref{ID: m.ID, Type: party.TypeManager}
}

func TestGetOrCreateIsIdempotentFromBothSides(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resident := f.addResident(t, "Alice Tran", false)
	manager := f.addManager(t, "Bob Keller", false)

	first, err := f.service.GetOrCreate(ctx, resident, manager)
	require.NoError(t, err)

	again, err := f.service.GetOrCreate(ctx, resident, manager)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// Opening from the other direction must find the same conversation.
	reversed, err := f.service.GetOrCreate(ctx, manager, resident)
	require.NoError(t, err)
	assert.Equal(t, first.ID, reversed.ID)

	assert.Len(t, f.conversations.conversations, 1)
}

func TestGetOrCreateSeedsSentinelAuthoredByTarget(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resident := f.addResident(t, "Alice Tran", false)
	manager := f.addManager(t, "Bob Keller", false)

	conv, err := f.service.GetOrCreate(ctx, resident, manager)
	require.NoError(t, err)

	history, err := f.messages.GetHistory(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].IsSentinel())
	assert.Equal(t, manager.ID, history[0].SenderID)
	assert.Equal(t, party.TypeManager, history[0].SenderType)

	// The sentinel lets the requester resolve the counterpart before the
	// target ever replies.
	counterpart, ok, err := f.service.ResolveCounterpart(ctx, conv, resident)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, counterpart.Equal(manager))
}

func TestGetOrCreateRejectsSelfAndUnknownTarget(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resident := f.addResident(t, "Alice Tran", false)

	_, err := f.service.GetOrCreate(ctx, resident, resident)
	assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)

	ghost := party.Ref{ID: uuid.New(), Type: party.TypeManager}
	_, err = f.service.GetOrCreate(ctx, resident, ghost)
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)
	assert.Empty(t, f.conversations.conversations)
}

func TestSameIDDifferentTypeAreDistinctParties(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	shared := uuid.New()
	r := party.Resident{ID: shared, FullName: "Alice Tran", Status: party.StatusActive}
	require.NoError(t, f.residents.Create(ctx, &r))
	m := party.Manager{ID: shared, FullName: "Bob Keller", Status: party.StatusActive}
	require.NoError(t, f.managers.Create(ctx, &m))

	other := f.addResident(t, "Carol Deng", false)

	asResident := party.Ref{ID: shared, Type: party.TypeResident}
	asManager := party.Ref{ID: shared, Type: party.TypeManager}

	first, err := f.service.GetOrCreate(ctx, other, asResident)
	require.NoError(t, err)
	second, err := f.service.GetOrCreate(ctx, other, asManager)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSendMessageRequiresMembership(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resident := f.addResident(t, "Alice Tran", false)
	manager := f.addManager(t, "Bob Keller", false)
	outsider := f.addResident(t, "Eve Marsh", true)

	conv, err := f.service.GetOrCreate(ctx, resident, manager)
	require.NoError(t, err)

	_, err = f.service.SendMessage(ctx, conv.ID, "hello", outsider)
	assert.ErrorIs(t, err, chat_errors.ErrForbidden)

	history, err := f.messages.GetHistory(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1) // only the sentinel
	assert.Zero(t, f.broker.count(chatevents.ChannelChatEvents))
}

func TestSendMessageUnknownConversation(t *testing.T) {
	f := newChatFixture(t)
	resident := f.addResident(t, "Alice Tran", false)

	_, err := f.service.SendMessage(context.Background(), uuid.New(), "hello", resident)
	assert.ErrorIs(t, err, chat_errors.ErrNotFound)
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resident := f.addResident(t, "Alice Tran", false)
	manager := f.addManager(t, "Bob Keller", false)
	conv, err := f.service.GetOrCreate(ctx, resident, manager)
	require.NoError(t, err)

	_, err = f.service.SendMessage(ctx, conv.ID, "", resident)
	assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)
}

func TestSendMessagePublishesOnlyWhenCounterpartOnline(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resident := f.addResident(t, "Alice Tran", false)
	manager := f.addManager(t, "Bob Keller", false)
	conv, err := f.service.GetOrCreate(ctx, resident, manager)
	require.NoError(t, err)

	view, err := f.service.SendMessage(ctx, conv.ID, "anyone there?", resident)
	require.NoError(t, err)
	assert.True(t, view.IsOwn)
	assert.Zero(t, f.broker.count(chatevents.ChannelChatEvents))

	require.NoError(t, f.managers.UpdateOnlineStatus(ctx, manager.ID, true, time.Now()))

	_, err = f.service.SendMessage(ctx, conv.ID, "hello again", resident)
	require.NoError(t, err)
	require.Equal(t, 1, f.broker.count(chatevents.ChannelChatEvents))

	var event chatevents.ChatEvent
	require.NoError(t, json.Unmarshal(f.broker.last(chatevents.ChannelChatEvents), &event))
	assert.Equal(t, chatevents.EventMessageSent, event.EventType)
	assert.Equal(t, manager.ID.String(), event.TargetPartyID)
	assert.Equal(t, party.TypeManager, event.TargetPartyType)
	assert.Equal(t, resident.ID.String(), event.SenderID)
	assert.Equal(t, "Alice Tran", event.SenderName)
	assert.Equal(t, "hello again", event.LastMessage)
}

func TestSendMessageSurvivesBrokerFailure(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resident := f.addResident(t, "Alice Tran", false)
	manager := f.addManager(t, "Bob Keller", true)
	conv, err := f.service.GetOrCreate(ctx, resident, manager)
	require.NoError(t, err)

	f.broker.fail = true

	view, err := f.service.SendMessage(ctx, conv.ID, "still persisted", resident)
	require.NoError(t, err)
	assert.Equal(t, "still persisted", view.Content)

	history, err := f.messages.GetHistory(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "still persisted", history[len(history)-1].Content)
}

func TestMessagesPageFiltersSentinelAndOrdersChronologically(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resident := f.addResident(t, "Alice Tran", false)
	manager := f.addManager(t, "Bob Keller", false)
	conv, err := f.service.GetOrCreate(ctx, resident, manager)
	require.NoError(t, err)

	_, err = f.service.SendMessage(ctx, conv.ID, "first", resident)
	require.NoError(t, err)
	_, err = f.service.SendMessage(ctx, conv.ID, "second", manager)
	require.NoError(t, err)
	_, err = f.service.SendMessage(ctx, conv.ID, "third", resident)
	require.NoError(t, err)

	page, err := f.service.MessagesPage(ctx, conv.ID, 50, resident)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "first", page[0].Content)
	assert.Equal(t, "second", page[1].Content)
	assert.Equal(t, "third", page[2].Content)
	assert.True(t, page[0].IsOwn)
	assert.False(t, page[1].IsOwn)
	assert.Equal(t, "Bob Keller", page[1].SenderName)
}

func TestMessagesPageDeniesNonMembers(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resident := f.addResident(t, "Alice Tran", false)
	manager := f.addManager(t, "Bob Keller", false)
	outsider := f.addResident(t, "Eve Marsh", false)

	conv, err := f.service.GetOrCreate(ctx, resident, manager)
	require.NoError(t, err)

	_, err = f.service.MessagesPage(ctx, conv.ID, 50, outsider)
	assert.ErrorIs(t, err, chat_errors.ErrForbidden)
}

func TestResolveCounterpartFallsBackToMessageHistory(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resident := f.addResident(t, "Alice Tran", false)
	manager := f.addManager(t, "Bob Keller", false)

	// Conversation without stored participants, as created before the
	// participant columns existed.
	conv, err := f.service.GetOrCreate(ctx, resident, manager)
	require.NoError(t, err)
	legacy := f.conversations.conversations[conv.ID]
	legacy.PartyAID = uuid.NullUUID{}
	legacy.PartyAType = nullString("")
	legacy.PartyBID = uuid.NullUUID{}
	legacy.PartyBType = nullString("")
	f.conversations.conversations[conv.ID] = legacy

	_, err = f.service.SendMessage(ctx, conv.ID, "hi", resident)
	require.NoError(t, err)

	// Viewer sent the latest message, so resolution walks back to the
	// earliest foreign sender.
	counterpart, ok, err := f.service.ResolveCounterpart(ctx, legacy, resident)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, counterpart.Equal(manager))

	counterpart, ok, err = f.service.ResolveCounterpart(ctx, legacy, manager)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, counterpart.Equal(resident))
}

func TestConversationInfoShowsCounterpartAndPreview(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resident := f.addResident(t, "Alice Tran", false)
	manager := f.addManager(t, "Bob Keller", true)
	conv, err := f.service.GetOrCreate(ctx, resident, manager)
	require.NoError(t, err)

	row, err := f.service.ConversationInfo(ctx, conv.ID, resident)
	require.NoError(t, err)
	assert.Equal(t, "Bob Keller", row.Name)
	assert.True(t, row.IsOnline)
	assert.Empty(t, row.LastMessage)
	assert.Nil(t, row.LastMessageAt)

	_, err = f.service.SendMessage(ctx, conv.ID, "ping", resident)
	require.NoError(t, err)

	row, err = f.service.ConversationInfo(ctx, conv.ID, resident)
	require.NoError(t, err)
	assert.Equal(t, "ping", row.LastMessage)
	require.NotNil(t, row.LastMessageAt)
}

func TestConversationInfoResolvesAvatarURL(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	resolver, err := storage.NewAvatarResolver(ctx, storage.S3Config{
		Region:    "eu-west-1",
		Bucket:    "housing-avatars",
		AccessKey: "test-access",
		SecretKey: "test-secret",
	})
	require.NoError(t, err)

	log := logger.New(logger.DevelopmentMode)
	directory := NewPartyDirectory(f.residents, f.managers)
	publisher := relay.NewEventPublisher(f.broker, log)
	presenceStore := &fakePresence{residents: f.residents, managers: f.managers}
	svc := NewChatService(f.conversations, f.messages, directory, presenceStore, publisher, resolver, log)

	resident := f.addResident(t, "Alice Tran", false)
	m := party.Manager{ID: uuid.New(), FullName: "Bob Keller", Status: party.StatusActive, AvatarKey: "managers/bob.png"}
	require.NoError(t, f.managers.Create(ctx, &m))
	manager := party.Ref{ID: m.ID, Type: party.TypeManager}

	conv, err := svc.GetOrCreate(ctx, resident, manager)
	require.NoError(t, err)

	// The stored object key comes back as a signed display URL, same as
	// the sidebar rows.
	row, err := svc.ConversationInfo(ctx, conv.ID, resident)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(row.Avatar, "https://"))
	assert.Contains(t, row.Avatar, "housing-avatars")
	assert.Contains(t, row.Avatar, "managers/bob.png")
}
