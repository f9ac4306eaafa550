package services

import (
	"context"
	"errors"
	"sort"

	"housing-chat/internal/domain/chat"
	"housing-chat/internal/domain/party"
	"housing-chat/internal/repository"
	"housing-chat/internal/storage"
	chat_errors "housing-chat/pkg/errors"
	"housing-chat/pkg/logger"

	"github.com/google/uuid"
)

// SidebarService assembles the combined sidebar view: the viewer's existing
// conversations plus contact suggestions drawn from housing relationships.
// The whole view is built from a fixed number of queries regardless of how
// many conversations the viewer has.
type SidebarService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	residents     repository.ResidentRepository
	managers      repository.ManagerRepository
	houses        repository.HouseRepository
	directory     *PartyDirectory
	avatars       *storage.AvatarResolver
	log           *logger.Logger
}

func NewSidebarService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	residents repository.ResidentRepository,
	managers repository.ManagerRepository,
	houses repository.HouseRepository,
	directory *PartyDirectory,
	avatars *storage.AvatarResolver,
	log *logger.Logger,
) *SidebarService {
	return &SidebarService{
		conversations: conversations,
		messages:      messages,
		residents:     residents,
		managers:      managers,
		houses:        houses,
		directory:     directory,
		avatars:       avatars,
		log:           log,
	}
}

// Sidebar builds the full sidebar for the viewer. Conversation rows are
// ordered by last message time, newest first, with rows that only carry the
// initiation sentinel sorted to the end. Contacts already covered by an
// existing conversation are excluded.
func (s *SidebarService) Sidebar(ctx context.Context, viewer party.Ref) (Sidebar, error) {
	conversations, err := s.conversations.GetPartyConversations(ctx, viewer)
	if err != nil {
		return Sidebar{}, err
	}

	ids := make([]uuid.UUID, len(conversations))
	for i, conv := range conversations {
		ids[i] = conv.ID
	}

	latest := map[uuid.UUID]chat.Message{}
	if len(ids) > 0 {
		latest, err = s.messages.GetLatestByConversationIDs(ctx, ids)
		if err != nil {
			return Sidebar{}, err
		}
	}

	counterparts := make(map[uuid.UUID]party.Ref, len(conversations))
	refs := make([]party.Ref, 0, len(conversations))
	seen := make(map[party.Ref]bool)
	for _, conv := range conversations {
		ref, ok, err := s.resolveCounterpart(ctx, conv, viewer, latest)
		if err != nil {
			return Sidebar{}, err
		}
		if !ok {
			continue
		}
		counterparts[conv.ID] = ref
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}

	cards, err := s.directory.Cards(ctx, refs)
	if err != nil {
		return Sidebar{}, err
	}

	rows := make([]ConversationRow, 0, len(conversations))
	for _, conv := range conversations {
		row := ConversationRow{ID: conv.ID, Name: PlaceholderName}
		if ref, ok := counterparts[conv.ID]; ok {
			if card, ok := cards[ref]; ok {
				row.PartyID = card.ID.String()
				row.PartyType = card.Type
				row.Name = card.DisplayName
				row.Avatar = s.avatars.URL(ctx, card.AvatarKey)
				row.IsOnline = card.IsOnline
			}
		}
		if msg, ok := latest[conv.ID]; ok && !msg.IsSentinel() {
			row.LastMessage = msg.Content
			at := msg.CreatedAt
			row.LastMessageAt = &at
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].LastMessageAt, rows[j].LastMessageAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	contacts, err := s.contacts(ctx, viewer, seen)
	if err != nil {
		return Sidebar{}, err
	}

	return Sidebar{Conversations: rows, Contacts: contacts}, nil
}

// resolveCounterpart mirrors ChatService.ResolveCounterpart but reuses the
// batched latest-message map so the common case costs no extra query.
func (s *SidebarService) resolveCounterpart(ctx context.Context, conv chat.Conversation, viewer party.Ref, latest map[uuid.UUID]chat.Message) (party.Ref, bool, error) {
	if ref, ok := conv.Counterpart(viewer); ok {
		return ref, true, nil
	}
	if msg, ok := latest[conv.ID]; ok && !msg.Sender().Equal(viewer) {
		return msg.Sender(), true, nil
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

// contacts suggests parties the viewer can start a conversation with.
// Residents see their house manager and active co-residents, managers see
// the active residents of the houses they manage. Parties already reachable
// through an existing conversation are skipped, and online contacts sort
// first.
func (s *SidebarService) contacts(ctx context.Context, viewer party.Ref, exclude map[party.Ref]bool) ([]ContactCard, error) {
	var cards []party.Card

	switch viewer.Type {
	case party.TypeResident:
		resident, err := s.residents.GetByID(ctx, viewer.ID)
		if err != nil {
			if errors.Is(err, chat_errors.ErrNotFound) {
				return []ContactCard{}, nil
			}
			return nil, err
		}
		if !resident.HouseID.Valid {
			return []ContactCard{}, nil
		}
		house, err := s.houses.GetByID(ctx, resident.HouseID.UUID)
		if err != nil && !errors.Is(err, chat_errors.ErrNotFound) {
			return nil, err
		}
		if err == nil && house.ManagerID.Valid {
			manager, err := s.managers.GetByID(ctx, house.ManagerID.UUID)
			if err != nil && !errors.Is(err, chat_errors.ErrNotFound) {
				return nil, err
			}
			if err == nil && manager.Status == party.StatusActive {
				cards = append(cards, manager.Card())
			}
		}
		neighbors, err := s.residents.GetByHouseIDs(ctx, []uuid.UUID{resident.HouseID.UUID})
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if n.Status == party.StatusActive {
				cards = append(cards, n.Card())
			}
		}

	case party.TypeManager:
		houses, err := s.houses.GetByManagerID(ctx, viewer.ID)
		if err != nil {
			return nil, err
		}
		if len(houses) == 0 {
			return []ContactCard{}, nil
		}
		houseIDs := make([]uuid.UUID, len(houses))
		for i, h := range houses {
			houseIDs[i] = h.ID
		}
		residents, err := s.residents.GetByHouseIDs(ctx, houseIDs)
		if err != nil {
			return nil, err
		}
		for _, r := range residents {
			if r.Status == party.StatusActive {
				cards = append(cards, r.Card())
			}
		}

	default:
		return nil, chat_errors.ErrInvalidInput
	}

	contacts := make([]ContactCard, 0, len(cards))
	added := make(map[party.Ref]bool)
	for _, card := range cards {
		if card.Ref.Equal(viewer) || exclude[card.Ref] || added[card.Ref] {
			continue
		}
		added[card.Ref] = true
		contacts = append(contacts, ContactCard{
			ID:        card.ID,
			PartyType: card.Type,
			Name:      card.DisplayName,
			Avatar:    s.avatars.URL(ctx, card.AvatarKey),
			IsOnline:  card.IsOnline,
		})
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		return contacts[i].IsOnline && !contacts[j].IsOnline
	})
	return contacts, nil
}
