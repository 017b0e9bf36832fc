package service

import (
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/caremesh/sentinel/internal/broadcast/domain"
	dir "github.com/caremesh/sentinel/internal/directory/domain"
)

func fixedResolver() *Resolver {
	r := NewResolver()
	r.SetClock(func() time.Time { return time.Date(2026, 4, 7, 12, 0, 0, 0, time.UTC) })
	return r
}

func targetStrings(targets []domain.Target) []string {
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		out = append(out, t.String())
	}
	return out
}

func TestResolve_LocationUpdated(t *testing.T) {
	r := fixedResolver()
	amb, fac := uuid.New(), uuid.New()

	targets, payload, _ := r.Resolve(domain.Event{Kind: domain.KindLocationUpdated, AmbulanceID: amb, FacilityID: fac})

	want := map[string]bool{
		"resource:ambulance:" + amb.String(): true,
		"resource:facility:" + fac.String():  true,
		"role:dispatch-center":               true,
	}
	if len(targets) != len(want) {
		t.Fatalf("targets = %v", targetStrings(targets))
	}
	for _, s := range targetStrings(targets) {
		if !want[s] {
			t.Errorf("unexpected target %s", s)
		}
	}
	if payload.Event != "location-updated" {
		t.Errorf("payload event = %q", payload.Event)
	}
	if payload.Data["ambulance_id"] != amb.String() {
		t.Errorf("payload data = %v", payload.Data)
	}
}

func TestResolve_GeofenceReferralChannel(t *testing.T) {
	r := fixedResolver()
	amb, fac := uuid.New(), uuid.New()
	ref := uuid.New()

	// Without a referral: the base trio.
	targets, _, _ := r.Resolve(domain.Event{Kind: domain.KindGeofenceCrossed, AmbulanceID: amb, FacilityID: fac})
	if len(targets) != 3 {
		t.Fatalf("without referral: %v", targetStrings(targets))
	}

	// With one: the referral channel joins.
	targets, payload, _ := r.Resolve(domain.Event{Kind: domain.KindGeofenceCrossed, AmbulanceID: amb, FacilityID: fac, ReferralID: &ref})
	if len(targets) != 4 {
		t.Fatalf("with referral: %v", targetStrings(targets))
	}
	var found bool
	for _, tg := range targets {
		if tg.Kind == domain.TargetResource && tg.Key == "referral:"+ref.String() {
			found = true
		}
	}
	if !found {
		t.Errorf("missing referral target in %v", targetStrings(targets))
	}
	if payload.Data["referral_id"] != ref.String() {
		t.Errorf("payload data = %v", payload.Data)
	}
}

func TestResolve_PatientConditionReceivingFacility(t *testing.T) {
	r := fixedResolver()
	ev := domain.Event{
		Kind:        domain.KindPatientConditionUpdated,
		AmbulanceID: uuid.New(),
		FacilityID:  uuid.New(),
		PatientID:   uuid.New(),
	}

	// No referral context: no receiving-facility channel.
	targets, _, _ := r.Resolve(ev)
	if len(targets) != 3 {
		t.Fatalf("without referral: %v", targetStrings(targets))
	}

	ref, recv := uuid.New(), uuid.New()
	ev.ReferralID = &ref
	ev.ReceivingFacilityID = &recv
	targets, _, _ = r.Resolve(ev)
	var found bool
	for _, tg := range targets {
		if tg.Key == "facility:"+recv.String() {
			found = true
		}
	}
	if !found {
		t.Errorf("missing receiving facility in %v", targetStrings(targets))
	}

	// Receiving facility without a referral is ignored.
	ev.ReferralID = nil
	targets, _, _ = r.Resolve(ev)
	for _, tg := range targets {
		if tg.Key == "facility:"+recv.String() {
			t.Errorf("receiving facility resolved without referral: %v", targetStrings(targets))
		}
	}
}

func TestResolve_EmergencyBroadcastRoleFanout(t *testing.T) {
	r := fixedResolver()
	fac := uuid.New()

	// Explicit role list.
	targets, _, _ := r.Resolve(domain.Event{
		Kind:        domain.KindEmergencyBroadcast,
		FacilityID:  fac,
		TargetRoles: []dir.Role{dir.RoleDoctor, dir.RoleNurse},
	})
	if len(targets) != 3 {
		t.Fatalf("explicit roles: %v", targetStrings(targets))
	}

	// Nil list defaults to every staff role plus the public channel.
	targets, _, _ = r.Resolve(domain.Event{Kind: domain.KindEmergencyBroadcast, FacilityID: fac})
	if len(targets) != len(dir.StaffRoles)+1 {
		t.Fatalf("default fan-out: %v", targetStrings(targets))
	}
	var public bool
	for _, tg := range targets {
		if tg.Kind == domain.TargetPublic {
			public = true
		}
	}
	if !public {
		t.Error("missing public channel")
	}
}

func TestResolve_CallParticipantsDeduplicated(t *testing.T) {
	r := fixedResolver()
	a, b := uuid.New(), uuid.New()

	targets, _, _ := r.Resolve(domain.Event{
		Kind:         domain.KindCallInitiated,
		CallID:       uuid.New(),
		RoomID:       uuid.New(),
		Participants: []uuid.UUID{a, b, a, a},
	})
	if len(targets) != 2 {
		t.Fatalf("expected 2 unique participants, got %v", targetStrings(targets))
	}
}

func TestResolve_MonitorEventsTargetAdmins(t *testing.T) {
	r := fixedResolver()
	actor := uuid.New()

	for _, kind := range []domain.Kind{domain.KindAccountLocked, domain.KindBruteForceDetected} {
		targets, payload, _ := r.Resolve(domain.Event{Kind: kind, ActorID: &actor, SourceIP: "203.0.113.9"})
		got := targetStrings(targets)
		want := []string{"role:facility-admin", "role:super-admin"}
		if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("%s targets = %v", kind, got)
		}
		if payload.Data["source_ip"] != "203.0.113.9" {
			t.Errorf("%s payload = %v", kind, payload.Data)
		}
	}
}

func TestResolve_TargetsSortedKindThenKey(t *testing.T) {
	r := fixedResolver()
	targets, _, _ := r.Resolve(domain.Event{
		Kind:        domain.KindStatusChanged,
		AmbulanceID: uuid.New(),
		FacilityID:  uuid.New(),
		Status:      "en-route",
	})
	sorted := sort.SliceIsSorted(targets, func(i, j int) bool {
		if targets[i].Kind != targets[j].Kind {
			return targets[i].Kind < targets[j].Kind
		}
		return targets[i].Key < targets[j].Key
	})
	if !sorted {
		t.Errorf("targets not sorted: %v", targetStrings(targets))
	}
}

func TestResolve_IdempotentAcrossTimestamps(t *testing.T) {
	r := fixedResolver()
	ev := domain.Event{
		Kind:        domain.KindLocationUpdated,
		AmbulanceID: uuid.New(),
		FacilityID:  uuid.New(),
		At:          time.Date(2026, 4, 7, 11, 0, 0, 0, time.UTC),
	}
	first, _, _ := r.Resolve(ev)

	// Only the event timestamp differs: same targets.
	ev.At = ev.At.Add(time.Hour)
	second, _, _ := r.Resolve(ev)

	if len(first) != len(second) {
		t.Fatalf("target sets differ: %v vs %v", targetStrings(first), targetStrings(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("target sets differ at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestResolve_UnknownKindEmptyNoError(t *testing.T) {
	r := fixedResolver()
	targets, payload, known := r.Resolve(domain.Event{Kind: "bed-vibrated"})
	if known {
		t.Error("unknown kind reported as recognized")
	}
	if len(targets) != 0 {
		t.Fatalf("unknown kind resolved targets: %v", targetStrings(targets))
	}
	if payload.Event != "bed-vibrated" {
		t.Errorf("payload event = %q", payload.Event)
	}
}

func TestResolve_KnownKindMayResolveZeroTargets(t *testing.T) {
	r := fixedResolver()

	// A call with no participants has nowhere to go, but the kind itself
	// is still recognized.
	targets, _, known := r.Resolve(domain.Event{
		Kind:   domain.KindCallInitiated,
		CallID: uuid.New(),
		RoomID: uuid.New(),
	})
	if !known {
		t.Error("call-initiated reported as unrecognized")
	}
	if len(targets) != 0 {
		t.Fatalf("expected no targets, got %v", targetStrings(targets))
	}
}

func TestResolve_PayloadUsesResolutionTime(t *testing.T) {
	r := fixedResolver()
	eventTime := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	_, payload, _ := r.Resolve(domain.Event{
		Kind:        domain.KindLocationUpdated,
		AmbulanceID: uuid.New(),
		FacilityID:  uuid.New(),
		At:          eventTime,
	})
	if !payload.At.Equal(time.Date(2026, 4, 7, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("payload.At = %v, want the resolution clock, not the event time", payload.At)
	}
}
