package repository

import (
	"context"
	"errors"
	"time"

	"housing-chat/internal/domain/party"
	chat_errors "housing-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresResidentRepository struct {
	db *gorm.DB
}

func NewResidentRepository(db *gorm.DB) ResidentRepository {
	return &PostgresResidentRepository{db: db}
}

func (r *PostgresResidentRepository) Create(ctx context.Context, res *party.Resident) error {
	result := r.db.WithContext(ctx).Create(res)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return chat_errors.ErrAlreadyExists
		}
		return result.Error
	}
	return nil
}

func (r *PostgresResidentRepository) GetByID(ctx context.Context, id uuid.UUID) (party.Resident, error) {
	var res party.Resident
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&res).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return party.Resident{}, chat_errors.ErrNotFound
		}
		return party.Resident{}, err
	}
	return res, nil
}

func (r *PostgresResidentRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]party.Resident, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var residents []party.Resident
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&residents).Error
	if err != nil {
		return nil, err
	}
	return residents, nil
}

func (r *PostgresResidentRepository) GetByHouseIDs(ctx context.Context, houseIDs []uuid.UUID) ([]party.Resident, error) {
	if len(houseIDs) == 0 {
		return nil, nil
	}
	var residents []party.Resident
	err := r.db.WithContext(ctx).Where("house_id IN ?", houseIDs).Find(&residents).Error
	if err != nil {
		return nil, err
	}
	return residents, nil
}

func (r *PostgresResidentRepository) UpdateOnlineStatus(ctx context.Context, id uuid.UUID, online bool, lastActive time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&party.Resident{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_online":      online,
			"last_active_at": lastActive,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresResidentRepository) ResetAllOffline(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&party.Resident{}).
		Where("is_online = ?", true).
		Update("is_online", false)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

type PostgresManagerRepository struct {
	db *gorm.DB
}

func NewManagerRepository(db *gorm.DB) ManagerRepository {
	return &PostgresManagerRepository{db: db}
}

func (r *PostgresManagerRepository) Create(ctx context.Context, m *party.Manager) error {
	result := r.db.WithContext(ctx).Create(m)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return chat_errors.ErrAlreadyExists
		}
		return result.Error
	}
	return nil
}

func (r *PostgresManagerRepository) GetByID(ctx context.Context, id uuid.UUID) (party.Manager, error) {
	var m party.Manager
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return party.Manager{}, chat_errors.ErrNotFound
		}
		return party.Manager{}, err
	}
	return m, nil
}

func (r *PostgresManagerRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]party.Manager, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var managers []party.Manager
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&managers).Error
	if err != nil {
		return nil, err
	}
	return managers, nil
}

func (r *PostgresManagerRepository) UpdateOnlineStatus(ctx context.Context, id uuid.UUID, online bool, lastActive time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&party.Manager{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_online":      online,
			"last_active_at": lastActive,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresManagerRepository) ResetAllOffline(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&party.Manager{}).
		Where("is_online = ?", true).
		Update("is_online", false)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

type PostgresHouseRepository struct {
	db *gorm.DB
}

func NewHouseRepository(db *gorm.DB) HouseRepository {
	return &PostgresHouseRepository{db: db}
}

func (r *PostgresHouseRepository) GetByID(ctx context.Context, id uuid.UUID) (party.House, error) {
	var h party.House
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&h).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return party.House{}, chat_errors.ErrNotFound
		}
		return party.House{}, err
	}
	return h, nil
}

func (r *PostgresHouseRepository) GetByManagerID(ctx context.Context, managerID uuid.UUID) ([]party.House, error) {
	var houses []party.House
	err := r.db.WithContext(ctx).Where("manager_id = ?", managerID).Find(&houses).Error
	if err != nil {
		return nil, err
	}
	return houses, nil
}
