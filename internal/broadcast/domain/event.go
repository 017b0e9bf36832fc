package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	dir "github.com/caremesh/sentinel/internal/directory/domain"
)

// Kind enumerates the domain event kinds the resolver understands. The
// constant string doubles as the stable event name in broadcast payloads.
type Kind string

const (
	KindLocationUpdated         Kind = "location-updated"
	KindStatusChanged           Kind = "status-changed"
	KindGeofenceCrossed         Kind = "geofence-crossed"
	KindPatientConditionUpdated Kind = "patient-condition-updated"
	KindEmergencyBroadcast      Kind = "emergency-broadcast"
	KindChatMessageSent         Kind = "chat-message-sent"
	KindChatTyping              Kind = "chat-typing"
	KindCallInitiated           Kind = "call-initiated"

	// Monitor-sourced events, fed back through the same resolver.
	KindAccountLocked      Kind = "account-locked"
	KindBruteForceDetected Kind = "brute-force-detected"
)

// Event is a tagged union: Kind selects which optional fields are read.
// Callers populate related-entity fields (referral, receiving facility)
// before resolution; the resolver never queries storage.
type Event struct {
	Kind Kind `json:"kind"`

	AmbulanceID         uuid.UUID  `json:"ambulance_id,omitempty"`
	FacilityID          uuid.UUID  `json:"facility_id,omitempty"`
	ReferralID          *uuid.UUID `json:"referral_id,omitempty"`
	ReceivingFacilityID *uuid.UUID `json:"receiving_facility_id,omitempty"`
	PatientID           uuid.UUID  `json:"patient_id,omitempty"`
	RoomID              uuid.UUID  `json:"room_id,omitempty"`
	CallID              uuid.UUID  `json:"call_id,omitempty"`
	Participants        []uuid.UUID `json:"participants,omitempty"`

	// Emergency broadcasts: nil means the default all-staff fan-out.
	TargetRoles []dir.Role `json:"target_roles,omitempty"`

	// Monitor-sourced fields. ActorID is nil for unresolved brute force.
	ActorID  *uuid.UUID `json:"actor_id,omitempty"`
	SourceIP string     `json:"source_ip,omitempty"`

	Status string    `json:"status,omitempty"`
	At     time.Time `json:"at"`
}

// TargetKind classifies a delivery destination.
type TargetKind string

const (
	TargetActor    TargetKind = "actor"
	TargetResource TargetKind = "resource"
	TargetRole     TargetKind = "role"
	TargetPublic   TargetKind = "public"
)

// Target is one addressable delivery destination. A resolved set is unique
// by (Kind, Key) and enumerated sorted by kind then key.
type Target struct {
	Kind TargetKind `json:"kind"`
	Key  string     `json:"key"`
}

func (t Target) String() string { return string(t.Kind) + ":" + t.Key }

// Named role-scoped channel groups that are not actor roles.
const GroupDispatchCenter = "dispatch-center"

// Payload is what the transport delivers: the stable event name, the minimal
// identifiers a consumer needs to re-fetch state, and the resolution
// timestamp (not the original event time).
type Payload struct {
	Event string            `json:"event"`
	At    time.Time         `json:"ts"`
	Data  map[string]string `json:"data"`
}

// Publisher accepts domain events for resolution and delivery. Implemented
// by the dispatcher; consumed by the threat monitor and embedding callers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}
