package party

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Type discriminates the two party variants. Resident and manager ids are
// scoped to their own tables and may collide as raw values, so a bare id is
// never enough to reference a party.
type Type string

const (
	TypeResident Type = "RESIDENT"
	TypeManager  Type = "MANAGER"
)

func (t Type) Valid() bool {
	return t == TypeResident || t == TypeManager
}

// Ref is a fully qualified party reference: id plus discriminant.
type Ref struct {
	ID   uuid.UUID
	Type Type
}

func (r Ref) Equal(other Ref) bool {
	return r.ID == other.ID && r.Type == other.Type
}

// Card is the capability surface both variants share. Everything outside the
// repositories works against Card and Ref, never against the concrete rows.
type Card struct {
	Ref
	DisplayName string
	AvatarKey   string
	IsOnline    bool
}

const (
	StatusActive   = "ACTIVE"
	StatusDisabled = "DISABLED"
)

// Resident represents the residents table
type Resident struct {
	ID           uuid.UUID
	FullName     string
	Email        sql.NullString
	AvatarKey    string
	HouseID      uuid.NullUUID
	Status       string
	IsOnline     bool
	LastActiveAt sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Resident) TableName() string { return "residents" }

func (r Resident) Card() Card {
	return Card{
		Ref:         Ref{ID: r.ID, Type: TypeResident},
		DisplayName: r.FullName,
		AvatarKey:   r.AvatarKey,
		IsOnline:    r.IsOnline,
	}
}

// Manager represents the managers table
type Manager struct {
	ID           uuid.UUID
	FullName     string
	Email        sql.NullString
	AvatarKey    string
	Status       string
	IsOnline     bool
	LastActiveAt sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Manager) TableName() string { return "managers" }

func (m Manager) Card() Card {
	return Card{
		Ref:         Ref{ID: m.ID, Type: TypeManager},
		DisplayName: m.FullName,
		AvatarKey:   m.AvatarKey,
		IsOnline:    m.IsOnline,
	}
}

// House ties residents to the manager responsible for their building. The
// chat core only uses it for contact suggestions.
type House struct {
	ID        uuid.UUID
	Address   string
	ManagerID uuid.NullUUID
	CreatedAt time.Time
}

func (House) TableName() string { return "houses" }
