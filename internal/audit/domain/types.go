package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Severity grades audit records and threat signals alike.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Fixed domain tags carried on records alongside the originating action name.
const (
	TagSecurity       = "security"
	TagAuthentication = "authentication"
	TagRoleChange     = "role_change"
	TagBroadcast      = "broadcast"
)

// Entry is one append-only audit record. Never updated or deleted.
type Entry struct {
	ID          uuid.UUID         `json:"id"`
	ActorID     *uuid.UUID        `json:"actor_id,omitempty"`
	Action      string            `json:"action"`
	Severity    Severity          `json:"severity"`
	Before      map[string]string `json:"before,omitempty"`
	After       map[string]string `json:"after,omitempty"`
	IP          string            `json:"ip,omitempty"`
	UserAgent   string            `json:"user_agent,omitempty"`
	RequestID   string            `json:"request_id,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        []string          `json:"tags"`
	At          time.Time         `json:"at"`
}

// Store appends immutable entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
}

// Recorder is the write boundary consumed by the other slices. Record must
// never fail or block the caller's primary operation.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}
