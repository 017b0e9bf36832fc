package domain

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"

	adomain "github.com/caremesh/sentinel/internal/audit/domain"
)

var ErrSessionNotFound = errors.New("threat: session not found")

// SignalKind enumerates the anomaly indicators the monitor derives.
type SignalKind string

const (
	SignalNewLocationLogin SignalKind = "new-location-login"
	SignalUnusualTimeLogin SignalKind = "unusual-time-login"
	SignalBruteForce       SignalKind = "brute-force"
	SignalAccountLocked    SignalKind = "account-locked"
)

// ThreatSignal is an immutable derived anomaly. ActorID is nil when brute
// force cannot be tied to a resolved account.
type ThreatSignal struct {
	Kind     SignalKind        `json:"kind"`
	ActorID  *uuid.UUID        `json:"actor_id,omitempty"`
	Evidence map[string]string `json:"evidence"`
	Severity adomain.Severity  `json:"severity"`
	At       time.Time         `json:"at"`
}

// Session is one authentication session, keyed by (actor, token hash).
// At most one non-terminated session exists per pair.
type Session struct {
	ID             uuid.UUID  `json:"id"`
	ActorID        uuid.UUID  `json:"actor_id"`
	TokenHash      string     `json:"-"`
	IP             string     `json:"ip"`
	UserAgent      string     `json:"user_agent"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	TerminatedAt   *time.Time `json:"terminated_at,omitempty"`
}

// HashToken derives the stored form of a session token. Raw tokens never
// touch the database.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// Attempt is one observed authentication lifecycle signal.
type Attempt struct {
	ActorID   *uuid.UUID
	Token     string
	IP        string
	UserAgent string
	At        time.Time
}

// SessionStore persists sessions and serves the trailing-window history the
// detections read. Never joined across actors.
type SessionStore interface {
	// StartSession refreshes the live session for (actor, token hash) or
	// creates a fresh one. A terminated session with the same token is
	// never resurrected.
	StartSession(ctx context.Context, s Session) error
	TouchSession(ctx context.Context, actorID uuid.UUID, tokenHash string, at time.Time) error
	TerminateSession(ctx context.Context, actorID uuid.UUID, tokenHash string, at time.Time) error
	// TerminateAllSessions ends every live session for the actor and
	// returns how many were ended.
	TerminateAllSessions(ctx context.Context, actorID uuid.UUID, at time.Time) (int, error)
	ListSessions(ctx context.Context, actorID uuid.UUID) ([]Session, error)
	// RecentIPs returns the distinct IPs in the actor's sessions created
	// since the given time.
	RecentIPs(ctx context.Context, actorID uuid.UUID, since time.Time) ([]string, error)
	// RecentLogins returns session creation times since the given time.
	RecentLogins(ctx context.Context, actorID uuid.UUID, since time.Time) ([]time.Time, error)
}

// CounterStore owns the per-actor consecutive-failure counter and lockout
// marker. Satisfied by the directory repository.
type CounterStore interface {
	IncrementFailedAttempts(ctx context.Context, id uuid.UUID) (int, error)
	ResetFailedAttempts(ctx context.Context, id uuid.UUID, loginAt time.Time) error
	SetLockout(ctx context.Context, id uuid.UUID, until time.Time) error
}
