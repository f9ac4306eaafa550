package presence

import (
	"context"
	"time"

	"housing-chat/internal/chatevents"
	"housing-chat/internal/domain/party"
	"housing-chat/internal/relay"
	"housing-chat/internal/repository"
	chat_errors "housing-chat/pkg/errors"
	"housing-chat/pkg/logger"
)

// Store is the single interface through which presence is read and written,
// regardless of which table backs a party type. Cross-process visibility of
// presence changes happens only via the event relay, never shared memory.
type Store interface {
	SetOnline(ctx context.Context, ref party.Ref, online bool) error
	IsOnline(ctx context.Context, ref party.Ref) (bool, error)
	// ResetAllOffline forces every party offline. Run once at process
	// startup: any session that set a flag true is gone after a restart,
	// and the disconnect event that would have cleared it may have been
	// lost with the crash.
	ResetAllOffline(ctx context.Context) error
}

type RepositoryStore struct {
	residents repository.ResidentRepository
	managers  repository.ManagerRepository
	publisher *relay.EventPublisher
	log       *logger.Logger
}

func NewRepositoryStore(
	residents repository.ResidentRepository,
	managers repository.ManagerRepository,
	publisher *relay.EventPublisher,
	log *logger.Logger,
) *RepositoryStore {
	return &RepositoryStore{
		residents: residents,
		managers:  managers,
		publisher: publisher,
		log:       log,
	}
}

// SetOnline writes the presence flag last-writer-wins and then publishes a
// presence event. A lost update under a connect/disconnect race is tolerated;
// it heals on the next transition or the next restart.
func (s *RepositoryStore) SetOnline(ctx context.Context, ref party.Ref, online bool) error {
	now := time.Now()

	var err error
	switch ref.Type {
	case party.TypeResident:
		err = s.residents.UpdateOnlineStatus(ctx, ref.ID, online, now)
	case party.TypeManager:
		err = s.managers.UpdateOnlineStatus(ctx, ref.ID, online, now)
	default:
		return chat_errors.ErrInvalidInput
	}
	if err != nil {
		return err
	}

	eventType := chatevents.EventPartyOffline
	if online {
		eventType = chatevents.EventPartyOnline
	}
	s.publisher.PublishPresenceEvent(ctx, chatevents.ChatEvent{
		EventType:       eventType,
		TargetPartyID:   ref.ID.String(),
		TargetPartyType: ref.Type,
		IsOnline:        online,
		Timestamp:       now,
	})
	return nil
}

func (s *RepositoryStore) IsOnline(ctx context.Context, ref party.Ref) (bool, error) {
	switch ref.Type {
	case party.TypeResident:
		r, err := s.residents.GetByID(ctx, ref.ID)
		if err != nil {
			return false, err
		}
		return r.IsOnline, nil
	case party.TypeManager:
		m, err := s.managers.GetByID(ctx, ref.ID)
		if err != nil {
			return false, err
		}
		return m.IsOnline, nil
	default:
		return false, chat_errors.ErrInvalidInput
	}
}

func (s *RepositoryStore) ResetAllOffline(ctx context.Context) error {
	residents, err := s.residents.ResetAllOffline(ctx)
	if err != nil {
		return err
	}
	managers, err := s.managers.ResetAllOffline(ctx)
	if err != nil {
		return err
	}
	s.log.Infof("reset online status: %d residents, %d managers forced offline", residents, managers)
	return nil
}
