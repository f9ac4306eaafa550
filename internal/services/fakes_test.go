package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"housing-chat/internal/domain/chat"
	"housing-chat/internal/domain/party"
	chat_errors "housing-chat/pkg/errors"

	"github.com/google/uuid"
)

// In-memory repository fakes shared by the service tests.

type fakeResidentRepo struct {
	mu        sync.Mutex
	residents map[uuid.UUID]party.Resident
}

func newFakeResidentRepo() *fakeResidentRepo {
	return &fakeResidentRepo{residents: make(map[uuid.UUID]party.Resident)}
}

func (f *fakeResidentRepo) Create(ctx context.Context, r *party.Resident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.residents[r.ID] = *r
	return nil
}

func (f *fakeResidentRepo) GetByID(ctx context.Context, id uuid.UUID) (party.Resident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.residents[id]
	if !ok {
		return party.Resident{}, chat_errors.ErrNotFound
	}
	return r, nil
}

func (f *fakeResidentRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]party.Resident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []party.Resident
	for _, id := range ids {
		if r, ok := f.residents[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResidentRepo) GetByHouseIDs(ctx context.Context, houseIDs []uuid.UUID) ([]party.Resident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	houses := make(map[uuid.UUID]bool, len(houseIDs))
	for _, id := range houseIDs {
		houses[id] = true
	}
	var out []party.Resident
	for _, r := range f.residents {
		if r.HouseID.Valid && houses[r.HouseID.UUID] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (f *fakeResidentRepo) UpdateOnlineStatus(ctx context.Context, id uuid.UUID, online bool, lastActive time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.residents[id]
	if !ok {
		return chat_errors.ErrNotFound
	}
	r.IsOnline = online
	f.residents[id] = r
	return nil
}

func (f *fakeResidentRepo) ResetAllOffline(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, r := range f.residents {
		if r.IsOnline {
			r.IsOnline = false
			f.residents[id] = r
			n++
		}
	}
	return n, nil
}

type fakeManagerRepo struct {
	mu       sync.Mutex
	managers map[uuid.UUID]party.Manager
}

func newFakeManagerRepo() *fakeManagerRepo {
	return &fakeManagerRepo{managers: make(map[uuid.UUID]party.Manager)}
}

func (f *fakeManagerRepo) Create(ctx context.Context, m *party.Manager) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.managers[m.ID] = *m
	return nil
}

func (f *fakeManagerRepo) GetByID(ctx context.Context, id uuid.UUID) (party.Manager, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.managers[id]
	if !ok {
		return party.Manager{}, chat_errors.ErrNotFound
	}
	return m, nil
}

func (f *fakeManagerRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]party.Manager, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []party.Manager
	for _, id := range ids {
		if m, ok := f.managers[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeManagerRepo) UpdateOnlineStatus(ctx context.Context, id uuid.UUID, online bool, lastActive time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.managers[id]
	if !ok {
		return chat_errors.ErrNotFound
	}
	m.IsOnline = online
	f.managers[id] = m
	return nil
}

func (f *fakeManagerRepo) ResetAllOffline(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, m := range f.managers {
		if m.IsOnline {
			m.IsOnline = false
			f.managers[id] = m
			n++
		}
	}
	return n, nil
}

type fakeHouseRepo struct {
	houses map[uuid.UUID]party.House
}

func newFakeHouseRepo() *fakeHouseRepo {
	return &fakeHouseRepo{houses: make(map[uuid.UUID]party.House)}
}

func (f *fakeHouseRepo) GetByID(ctx context.Context, id uuid.UUID) (party.House, error) {
	h, ok := f.houses[id]
	if !ok {
		return party.House{}, chat_errors.ErrNotFound
	}
	return h, nil
}

func (f *fakeHouseRepo) GetByManagerID(ctx context.Context, managerID uuid.UUID) ([]party.House, error) {
	var out []party.House
	for _, h := range f.houses {
		if h.ManagerID.Valid && h.ManagerID.UUID == managerID {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]chat.Conversation
	members       []chat.Member
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[uuid.UUID]chat.Conversation)}
}

func (f *fakeConversationRepo) Create(ctx context.Context, c *chat.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations[c.ID] = *c
	return nil
}

func (f *fakeConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (chat.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return chat.Conversation{}, chat_errors.ErrNotFound
	}
	return c, nil
}

func (f *fakeConversationRepo) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[id]
	if !ok {
		return chat_errors.ErrNotFound
	}
	c.UpdatedAt = at
	f.conversations[id] = c
	return nil
}

func (f *fakeConversationRepo) AddMember(ctx context.Context, m *chat.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members = append(f.members, *m)
	return nil
}

func (f *fakeConversationRepo) IsMember(ctx context.Context, conversationID uuid.UUID, ref party.Ref) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.ConversationID == conversationID && m.PartyID == ref.ID && m.PartyType == ref.Type {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeConversationRepo) GetPartyConversations(ctx context.Context, ref party.Ref) ([]chat.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chat.Conversation
	for _, m := range f.members {
		if m.PartyID == ref.ID && m.PartyType == ref.Type {
			if c, ok := f.conversations[m.ConversationID]; ok {
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []chat.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (f *fakeMessageRepo) Create(ctx context.Context, m *chat.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, *m)
	return nil
}

func (f *fakeMessageRepo) conversationMessages(conversationID uuid.UUID) []chat.Message {
	var out []chat.Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *fakeMessageRepo) GetLatestMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.conversationMessages(conversationID)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMessageRepo) GetHistory(ctx context.Context, conversationID uuid.UUID) ([]chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conversationMessages(conversationID), nil
}

func (f *fakeMessageRepo) GetLatestByConversationIDs(ctx context.Context, conversationIDs []uuid.UUID) (map[uuid.UUID]chat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uuid.UUID]chat.Message)
	for _, id := range conversationIDs {
		msgs := f.conversationMessages(id)
		if len(msgs) > 0 {
			out[id] = msgs[len(msgs)-1]
		}
	}
	return out, nil
}

// fakePresence keys online status off the fake repositories so service tests
// see the same view the repository-backed store would produce.
type fakePresence struct {
	residents *fakeResidentRepo
	managers  *fakeManagerRepo
}

func (f *fakePresence) SetOnline(ctx context.Context, ref party.Ref, online bool) error {
	switch ref.Type {
	case party.TypeResident:
		return f.residents.UpdateOnlineStatus(ctx, ref.ID, online, time.Now())
	case party.TypeManager:
		return f.managers.UpdateOnlineStatus(ctx, ref.ID, online, time.Now())
	}
	return chat_errors.ErrInvalidInput
}

func (f *fakePresence) IsOnline(ctx context.Context, ref party.Ref) (bool, error) {
	switch ref.Type {
	case party.TypeResident:
		r, err := f.residents.GetByID(ctx, ref.ID)
		if err != nil {
			return false, err
		}
		return r.IsOnline, nil
	case party.TypeManager:
		m, err := f.managers.GetByID(ctx, ref.ID)
		if err != nil {
			return false, err
		}
		return m.IsOnline, nil
	}
	return false, chat_errors.ErrInvalidInput
}

func (f *fakePresence) ResetAllOffline(ctx context.Context) error {
	if _, err := f.residents.ResetAllOffline(ctx); err != nil {
		return err
	}
	_, err := f.managers.ResetAllOffline(ctx)
	return err
}

// fakeBroker records published payloads per channel.
type fakeBroker struct {
	mu        sync.Mutex
	published map[string][][]byte
	fail      bool
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: make(map[string][][]byte)}
}

func (f *fakeBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return chat_errors.ErrRelayUnavailable
	}
	f.published[channel] = append(f.published[channel], payload)
	return nil
}

func (f *fakeBroker) count(channel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published[channel])
}

func (f *fakeBroker) last(channel string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.published[channel]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}
