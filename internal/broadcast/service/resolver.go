package service

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/caremesh/sentinel/internal/broadcast/domain"
	dir "github.com/caremesh/sentinel/internal/directory/domain"
)

// Resolver maps a domain event to its channel targets and broadcast payload.
// It reads only the event's fields; no storage, no hidden state.
type Resolver struct {
	log zerolog.Logger
	now func() time.Time
}

func NewResolver() *Resolver {
	return &Resolver{log: zerolog.Nop(), now: time.Now}
}

// SetLogger allows injection of a structured logger.
func (r *Resolver) SetLogger(l zerolog.Logger) { r.log = l }

// SetClock overrides the resolution timestamp source. Test support.
func (r *Resolver) SetClock(now func() time.Time) { r.now = now }

// targetSet accumulates targets deduplicated by (kind, key).
type targetSet struct {
	seen map[domain.Target]struct{}
	out  []domain.Target
}

func newTargetSet() *targetSet {
	return &targetSet{seen: make(map[domain.Target]struct{})}
}

func (s *targetSet) add(kind domain.TargetKind, key string) {
	t := domain.Target{Kind: kind, Key: key}
	if _, ok := s.seen[t]; ok {
		return
	}
	s.seen[t] = struct{}{}
	s.out = append(s.out, t)
}

func (s *targetSet) sorted() []domain.Target {
	sort.Slice(s.out, func(i, j int) bool {
		if s.out[i].Kind != s.out[j].Kind {
			return s.out[i].Kind < s.out[j].Kind
		}
		return s.out[i].Key < s.out[j].Key
	})
	return s.out
}

// Resolve computes the delivery destinations and payload for one event.
// The boolean reports whether the kind has a targeting rule: unknown kinds
// resolve to an empty set with a logged warning so new event kinds can ship
// before their rules exist, and a known kind may legitimately resolve to
// zero targets (a call with no participants).
func (r *Resolver) Resolve(ev domain.Event) ([]domain.Target, domain.Payload, bool) {
	set := newTargetSet()
	data := map[string]string{}

	switch ev.Kind {
	case domain.KindLocationUpdated:
		r.dispatchTargets(set, ev, false)
		data["ambulance_id"] = ev.AmbulanceID.String()
		data["facility_id"] = ev.FacilityID.String()

	case domain.KindStatusChanged, domain.KindGeofenceCrossed:
		r.dispatchTargets(set, ev, true)
		data["ambulance_id"] = ev.AmbulanceID.String()
		data["facility_id"] = ev.FacilityID.String()
		if ev.ReferralID != nil {
			data["referral_id"] = ev.ReferralID.String()
		}
		if ev.Status != "" {
			data["status"] = ev.Status
		}

	case domain.KindPatientConditionUpdated:
		r.dispatchTargets(set, ev, true)
		if ev.ReferralID != nil && ev.ReceivingFacilityID != nil {
			set.add(domain.TargetResource, "facility:"+ev.ReceivingFacilityID.String())
			data["receiving_facility_id"] = ev.ReceivingFacilityID.String()
		}
		data["ambulance_id"] = ev.AmbulanceID.String()
		data["facility_id"] = ev.FacilityID.String()
		data["patient_id"] = ev.PatientID.String()
		if ev.ReferralID != nil {
			data["referral_id"] = ev.ReferralID.String()
		}

	case domain.KindEmergencyBroadcast:
		set.add(domain.TargetPublic, "public")
		roles := ev.TargetRoles
		if roles == nil {
			roles = dir.StaffRoles
		}
		for _, role := range roles {
			set.add(domain.TargetRole, role.String())
		}
		data["facility_id"] = ev.FacilityID.String()

	case domain.KindChatMessageSent, domain.KindChatTyping:
		set.add(domain.TargetResource, "chat-room:"+ev.RoomID.String())
		data["room_id"] = ev.RoomID.String()

	case domain.KindCallInitiated:
		for _, p := range ev.Participants {
			set.add(domain.TargetActor, p.String())
		}
		data["call_id"] = ev.CallID.String()
		data["room_id"] = ev.RoomID.String()

	case domain.KindAccountLocked, domain.KindBruteForceDetected:
		set.add(domain.TargetRole, dir.RoleFacilityAdmin.String())
		set.add(domain.TargetRole, dir.RoleSuperAdmin.String())
		if ev.ActorID != nil {
			data["actor_id"] = ev.ActorID.String()
		}
		if ev.SourceIP != "" {
			data["source_ip"] = ev.SourceIP
		}

	default:
		r.log.Warn().Str("kind", string(ev.Kind)).Msg("resolve: unrecognized event kind")
		return nil, domain.Payload{Event: string(ev.Kind), At: r.now().UTC(), Data: data}, false
	}

	return set.sorted(), domain.Payload{Event: string(ev.Kind), At: r.now().UTC(), Data: data}, true
}

// dispatchTargets adds the common ambulance-dispatch trio, plus the referral
// channel when the dispatch carries one and withReferral is set.
func (r *Resolver) dispatchTargets(set *targetSet, ev domain.Event, withReferral bool) {
	set.add(domain.TargetResource, "ambulance:"+ev.AmbulanceID.String())
	set.add(domain.TargetResource, "facility:"+ev.FacilityID.String())
	set.add(domain.TargetRole, domain.GroupDispatchCenter)
	if withReferral && ev.ReferralID != nil {
		set.add(domain.TargetResource, "referral:"+ev.ReferralID.String())
	}
}
