package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("directory: actor not found")

// Role is the fixed set of account roles across the hospital network.
type Role string

const (
	RoleSuperAdmin    Role = "super-admin"
	RoleFacilityAdmin Role = "facility-admin"
	RoleDoctor        Role = "doctor"
	RoleNurse         Role = "nurse"
	RoleDispatcher    Role = "dispatcher"
	RoleDriver        Role = "driver"
	RoleParamedic     Role = "paramedic"
	RolePatient       Role = "patient"
)

// AllRoles enumerates every known role in a stable order.
var AllRoles = []Role{
	RoleSuperAdmin,
	RoleFacilityAdmin,
	RoleDoctor,
	RoleNurse,
	RoleDispatcher,
	RoleDriver,
	RoleParamedic,
	RolePatient,
}

// StaffRoles is every role except patient, in the same stable order.
var StaffRoles = []Role{
	RoleSuperAdmin,
	RoleFacilityAdmin,
	RoleDoctor,
	RoleNurse,
	RoleDispatcher,
	RoleDriver,
	RoleParamedic,
}

// ParseRole returns the Role for its string form, or false when unknown.
func ParseRole(s string) (Role, bool) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

func (r Role) String() string { return string(r) }

type ActorStatus string

const (
	StatusActive    ActorStatus = "active"
	StatusInactive  ActorStatus = "inactive"
	StatusSuspended ActorStatus = "suspended"
)

// Actor is the directory's read model for an account. The monitor owns the
// failure counter and lockout columns; role and status belong to external
// account management.
type Actor struct {
	ID             uuid.UUID
	Role           Role
	Status         ActorStatus
	FailedAttempts int
	LockedUntil    *time.Time
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Store is the read/write boundary to actor rows. Counter mutations are
// issued only by the threat monitor.
type Store interface {
	GetActor(ctx context.Context, id uuid.UUID) (Actor, error)
	ListActors(ctx context.Context) ([]Actor, error)
	// IncrementFailedAttempts bumps the persistent failure counter and
	// returns the new value.
	IncrementFailedAttempts(ctx context.Context, id uuid.UUID) (int, error)
	// ResetFailedAttempts zeroes the counter and stamps last login.
	ResetFailedAttempts(ctx context.Context, id uuid.UUID, loginAt time.Time) error
	SetLockout(ctx context.Context, id uuid.UUID, until time.Time) error
}
