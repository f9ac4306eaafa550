package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"housing-chat/internal/chatevents"
	"housing-chat/internal/domain/party"
	"housing-chat/internal/relay"
	"housing-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackBroker routes publishes synchronously into subscribed handlers,
// standing in for Redis or Kafka between two simulated processes.
type loopbackBroker struct {
	mu       sync.Mutex
	handlers []func(channel string, payload []byte)
	ready    chan struct{}
}

func newLoopbackBroker() *loopbackBroker {
	return &loopbackBroker{ready: make(chan struct{})}
}

func (b *loopbackBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	handlers := append([]func(string, []byte){}, b.handlers...)
	b.mu.Unlock()
	for _, h := range handlers {
		h(channel, payload)
	}
	return nil
}

func (b *loopbackBroker) Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error {
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
	close(b.ready)
	<-ctx.Done()
	return ctx.Err()
}

type capturingHub struct {
	mu       sync.Mutex
	payloads map[string][][]byte
}

func (h *capturingHub) Broadcast(channel string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.payloads == nil {
		h.payloads = make(map[string][][]byte)
	}
	h.payloads[channel] = append(h.payloads[channel], payload)
}

func (h *capturingHub) get(channel string) [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.payloads[channel]
}

// The full spec scenario: a manager on one process sends to a resident whose
// session lives on another process; the event crosses the broker and lands
// on the resident's private hub queue.
func TestMessageDeliveredAcrossProcesses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logger.New(logger.DevelopmentMode)
	residents := newFakeResidentRepo()
	managers := newFakeManagerRepo()
	conversations := newFakeConversationRepo()
	messages := newFakeMessageRepo()
	broker := newLoopbackBroker()

	directory := NewPartyDirectory(residents, managers)
	publisher := relay.NewEventPublisher(broker, log)
	presenceStore := &fakePresence{residents: residents, managers: managers}
	svc := NewChatService(conversations, messages, directory, presenceStore, publisher, nil, log)

	// The resident-hosting process: its dispatcher consumes the shared
	// broker and delivers to its local hub.
	hub := &capturingHub{}
	dispatcher := relay.NewDispatcher(party.TypeResident, broker, presenceStore, hub, log)
	go func() { _ = dispatcher.Run(ctx) }()
	select {
	case <-broker.ready:
	case <-time.After(time.Second):
		t.Fatal("dispatcher never subscribed")
	}

	resident := party.Resident{ID: uuid.New(), FullName: "Alice Tran", Status: party.StatusActive, IsOnline: true}
	require.NoError(t, residents.Create(ctx, &resident))
	manager := party.Manager{ID: uuid.New(), FullName: "Bob Keller", Status: party.StatusActive, IsOnline: true}
	require.NoError(t, managers.Create(ctx, &manager))

	residentRef := party.Ref{ID: resident.ID, Type: party.TypeResident}
	managerRef := party.Ref{ID: manager.ID, Type: party.TypeManager}

	conv, err := svc.GetOrCreate(ctx, residentRef, managerRef)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, conv.ID, "Hello", managerRef)
	require.NoError(t, err)

	queue := chatevents.PartyQueue(residentRef)
	payloads := hub.get(queue)
	require.Len(t, payloads, 1)

	var event chatevents.ChatEvent
	require.NoError(t, json.Unmarshal(payloads[0], &event))
	assert.Equal(t, chatevents.EventMessageSent, event.EventType)
	assert.Equal(t, resident.ID.String(), event.TargetPartyID)
	assert.Equal(t, conv.ID.String(), event.ConversationID)
	assert.Equal(t, "Hello", event.LastMessage)
	assert.Equal(t, "Bob Keller", event.SenderName)

	// The persisted message is visible to the resident regardless of the
	// live delivery.
	page, err := svc.MessagesPage(ctx, conv.ID, 50, residentRef)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Hello", page[0].Content)
	assert.Equal(t, party.TypeManager, page[0].SenderType)
}
