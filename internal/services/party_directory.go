package services

import (
	"context"

	"housing-chat/internal/domain/party"
	"housing-chat/internal/repository"
	chat_errors "housing-chat/pkg/errors"

	"github.com/google/uuid"
)

// PartyDirectory resolves party refs to display cards across both variant
// tables. Batch lookups group refs by type so a sidebar build costs two
// queries however many conversations it covers.
type PartyDirectory struct {
	residents repository.ResidentRepository
	managers  repository.ManagerRepository
}

func NewPartyDirectory(residents repository.ResidentRepository, managers repository.ManagerRepository) *PartyDirectory {
	return &PartyDirectory{residents: residents, managers: managers}
}

func (d *PartyDirectory) Card(ctx context.Context, ref party.Ref) (party.Card, error) {
	switch ref.Type {
	case party.TypeResident:
		r, err := d.residents.GetByID(ctx, ref.ID)
		if err != nil {
			return party.Card{}, err
		}
		return r.Card(), nil
	case party.TypeManager:
		m, err := d.managers.GetByID(ctx, ref.ID)
		if err != nil {
			return party.Card{}, err
		}
		return m.Card(), nil
	default:
		return party.Card{}, chat_errors.ErrInvalidInput
	}
}

func (d *PartyDirectory) Cards(ctx context.Context, refs []party.Ref) (map[party.Ref]party.Card, error) {
	residentIDs := make([]uuid.UUID, 0, len(refs))
	managerIDs := make([]uuid.UUID, 0, len(refs))
	for _, ref := range refs {
		switch ref.Type {
		case party.TypeResident:
			residentIDs = append(residentIDs, ref.ID)
		case party.TypeManager:
			managerIDs = append(managerIDs, ref.ID)
		}
	}

	cards := make(map[party.Ref]party.Card, len(refs))

	residents, err := d.residents.GetByIDs(ctx, residentIDs)
	if err != nil {
		return nil, err
	}
	for _, r := range residents {
		card := r.Card()
		cards[card.Ref] = card
	}

	managers, err := d.managers.GetByIDs(ctx, managerIDs)
	if err != nil {
		return nil, err
	}
	for _, m := range managers {
		card := m.Card()
		cards[card.Ref] = card
	}

	return cards, nil
}
