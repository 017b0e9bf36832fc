package domain

import (
	"errors"

	"github.com/google/uuid"

	dir "github.com/caremesh/sentinel/internal/directory/domain"
)

// ErrUnknownCapability marks a capability name that is absent from the static
// table. It is a configuration error at the call site, never a deny.
var ErrUnknownCapability = errors.New("access: unknown capability")

// Decision is the outcome of one capability check. Allowed is an ordinary
// boolean; Reason is a short machine-readable tag for logs and responses.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

const (
	ReasonGranted      = "granted"
	ReasonGrantedOwner = "granted:owner"
	ReasonDenied       = "denied"
	ReasonSelfDemotion = "denied:self_demotion"
)

// Resource is the optional object of a capability check. OwnerActorID is the
// owning or affiliated actor; caller-supplied, never fetched here.
type Resource struct {
	Kind         string    `json:"kind"`
	OwnerActorID uuid.UUID `json:"owner_actor_id"`
}

// Input carries everything a single check needs. The resolver reads nothing
// else, so identical inputs always produce identical decisions.
type Input struct {
	ActorID    uuid.UUID
	Role       dir.Role
	Capability string
	Resource   *Resource
}
