package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	arepo "github.com/caremesh/sentinel/internal/audit/repository"
	asvc "github.com/caremesh/sentinel/internal/audit/service"
	bdomain "github.com/caremesh/sentinel/internal/broadcast/domain"
	"github.com/caremesh/sentinel/internal/platform/window"
	"github.com/caremesh/sentinel/internal/threat/domain"
	"github.com/caremesh/sentinel/internal/threat/repository"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []bdomain.Event
}

func (p *capturePublisher) Publish(_ context.Context, ev bdomain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) kinds() []bdomain.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]bdomain.Kind, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

type monitorFixture struct {
	mon      *Monitor
	sessions *repository.MemorySessions
	counters *repository.MemoryCounters
	pub      *capturePublisher
	audit    *arepo.Memory
	rec      *asvc.Recorder
	clock    time.Time
}

func newFixture(t *testing.T) *monitorFixture {
	t.Helper()
	f := &monitorFixture{
		sessions: repository.NewMemorySessions(),
		counters: repository.NewMemoryCounters(),
		pub:      &capturePublisher{},
		audit:    arepo.NewMemory(),
		clock:    time.Date(2026, 4, 7, 10, 0, 0, 0, time.UTC),
	}
	f.rec = asvc.New(f.audit, time.Second)
	f.mon = New(DefaultConfig(), f.sessions, f.counters, window.NewMemory(), f.pub, f.rec)
	f.mon.SetClock(func() time.Time { return f.clock })
	return f
}

func signalKinds(signals []domain.ThreatSignal) []domain.SignalKind {
	out := make([]domain.SignalKind, 0, len(signals))
	for _, s := range signals {
		out = append(out, s.Kind)
	}
	return out
}

func TestRecordFailure_LocksOnFifthConsecutive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	var locked []domain.ThreatSignal
	for i := 0; i < 5; i++ {
		at := f.clock.Add(time.Duration(i) * time.Second)
		signals := f.mon.RecordFailure(ctx, domain.Attempt{ActorID: &actor, IP: "10.1.1.1", At: at})
		for _, s := range signals {
			if s.Kind == domain.SignalAccountLocked {
				locked = append(locked, s)
			}
		}
		if i < 4 && len(locked) != 0 {
			t.Fatalf("locked after only %d failures", i+1)
		}
	}
	if len(locked) != 1 {
		t.Fatalf("expected exactly 1 account-locked signal, got %d", len(locked))
	}
	if locked[0].ActorID == nil || *locked[0].ActorID != actor {
		t.Errorf("signal actor = %v", locked[0].ActorID)
	}

	until, ok := f.counters.LockedUntil(actor)
	if !ok {
		t.Fatal("lockout marker not set")
	}
	if want := locked[0].At.Add(15 * time.Minute); !until.Equal(want) {
		t.Errorf("locked until %v, want %v", until, want)
	}

	// The lock is republished as a domain event for admin channels.
	kinds := f.pub.kinds()
	if len(kinds) != 1 || kinds[0] != bdomain.KindAccountLocked {
		t.Errorf("published kinds = %v", kinds)
	}
}

func TestRecordFailure_FurtherFailuresDoNotRelock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	var locks int
	for i := 0; i < 8; i++ {
		signals := f.mon.RecordFailure(ctx, domain.Attempt{ActorID: &actor, IP: "10.1.1.1", At: f.clock})
		for _, s := range signals {
			if s.Kind == domain.SignalAccountLocked {
				locks++
			}
		}
	}
	if locks != 1 {
		t.Fatalf("expected 1 lock across 8 failures, got %d", locks)
	}
}

func TestRecordFailure_SuccessResetsTheRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	for i := 0; i < 4; i++ {
		f.mon.RecordFailure(ctx, domain.Attempt{ActorID: &actor, IP: "10.1.1.1", At: f.clock})
	}
	f.mon.RecordSuccess(ctx, domain.Attempt{ActorID: &actor, IP: "10.1.1.1", Token: "tok", At: f.clock})

	// Four more failures stay below the threshold after the reset.
	for i := 0; i < 4; i++ {
		signals := f.mon.RecordFailure(ctx, domain.Attempt{ActorID: &actor, IP: "10.1.1.1", At: f.clock})
		for _, s := range signals {
			if s.Kind == domain.SignalAccountLocked {
				t.Fatal("locked despite intervening success")
			}
		}
	}
}

func TestRecordFailure_BruteForceFiresOnceAtThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ip := "203.0.113.9"

	var bruteAt []int
	for i := 0; i < 12; i++ {
		at := f.clock.Add(time.Duration(i) * time.Second)
		signals := f.mon.RecordFailure(ctx, domain.Attempt{IP: ip, At: at})
		for _, s := range signals {
			if s.Kind == domain.SignalBruteForce {
				bruteAt = append(bruteAt, i+1)
			}
		}
	}
	if len(bruteAt) != 1 || bruteAt[0] != 10 {
		t.Fatalf("expected one brute-force signal at attempt 10, got attempts %v", bruteAt)
	}
	if got := f.pub.kinds(); len(got) != 1 || got[0] != bdomain.KindBruteForceDetected {
		t.Errorf("published kinds = %v", got)
	}
}

func TestRecordFailure_BruteForceRearmsAfterWindowDrains(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ip := "203.0.113.9"

	var brutes int
	for i := 0; i < 10; i++ {
		signals := f.mon.RecordFailure(ctx, domain.Attempt{IP: ip, At: f.clock.Add(time.Duration(i) * time.Second)})
		for _, s := range signals {
			if s.Kind == domain.SignalBruteForce {
				brutes++
			}
		}
	}
	if brutes != 1 {
		t.Fatalf("first window: expected 1 signal, got %d", brutes)
	}

	// Twenty minutes of quiet drains the window; a single failure then
	// counts 1 and the detector re-arms.
	quiet := f.clock.Add(20 * time.Minute)
	f.mon.RecordFailure(ctx, domain.Attempt{IP: ip, At: quiet})

	for i := 1; i < 10; i++ {
		signals := f.mon.RecordFailure(ctx, domain.Attempt{IP: ip, At: quiet.Add(time.Duration(i) * time.Second)})
		for _, s := range signals {
			if s.Kind == domain.SignalBruteForce {
				brutes++
			}
		}
	}
	if brutes != 2 {
		t.Fatalf("expected the second window to fire again, total %d", brutes)
	}
}

func TestRecordFailure_BruteForceStaysArmedAcrossInterleavedSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ip := "203.0.113.9"
	actor := uuid.New()

	var brutes int
	count := func(signals []domain.ThreatSignal) {
		for _, s := range signals {
			if s.Kind == domain.SignalBruteForce {
				brutes++
			}
		}
	}

	for i := 0; i < 10; i++ {
		count(f.mon.RecordFailure(ctx, domain.Attempt{ActorID: &actor, IP: ip, At: f.clock.Add(time.Duration(i) * time.Second)}))
	}
	if brutes != 1 {
		t.Fatalf("expected 1 signal after 10 failures, got %d", brutes)
	}

	// A success from the IP while the window still qualifies does not
	// re-arm the detector: the next failure is part of the same episode.
	f.mon.RecordSuccess(ctx, domain.Attempt{ActorID: &actor, IP: ip, Token: "tok", At: f.clock.Add(10 * time.Second)})
	count(f.mon.RecordFailure(ctx, domain.Attempt{ActorID: &actor, IP: ip, At: f.clock.Add(11 * time.Second)}))
	if brutes != 1 {
		t.Fatalf("interleaved success re-armed the detector: %d signals", brutes)
	}
}

func TestRecordSuccess_NewLocationSignal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	// History: logins from three known IPs over the past week.
	for i, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		at := f.clock.Add(-time.Duration(i+1) * 24 * time.Hour)
		f.mon.RecordSuccess(ctx, domain.Attempt{ActorID: &actor, IP: ip, Token: "tok-" + ip, At: at})
	}

	signals := f.mon.RecordSuccess(ctx, domain.Attempt{ActorID: &actor, IP: "198.51.100.7", Token: "tok-new", At: f.clock})
	var found *domain.ThreatSignal
	for i := range signals {
		if signals[i].Kind == domain.SignalNewLocationLogin {
			found = &signals[i]
		}
	}
	if found == nil {
		t.Fatalf("expected new-location signal, got %v", signalKinds(signals))
	}
	if found.Evidence["ip"] != "198.51.100.7" {
		t.Errorf("evidence ip = %q", found.Evidence["ip"])
	}

	// The same IP again is now known.
	signals = f.mon.RecordSuccess(ctx, domain.Attempt{ActorID: &actor, IP: "198.51.100.7", Token: "tok-new2", At: f.clock.Add(time.Minute)})
	for _, s := range signals {
		if s.Kind == domain.SignalNewLocationLogin {
			t.Fatal("known IP flagged as new location")
		}
	}
}

func TestRecordSuccess_FirstLoginIsNotNewLocation(t *testing.T) {
	f := newFixture(t)
	actor := uuid.New()

	signals := f.mon.RecordSuccess(context.Background(), domain.Attempt{ActorID: &actor, IP: "10.0.0.1", Token: "tok", At: f.clock})
	for _, s := range signals {
		if s.Kind == domain.SignalNewLocationLogin {
			t.Fatal("first-ever login must not be a new location")
		}
	}
}

func TestRecordSuccess_UnusualHourSignal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	// Six logins during working hours in the past week.
	for i := 0; i < 6; i++ {
		at := time.Date(2026, 4, 1+i, 9+(i%2), 15, 0, 0, time.UTC)
		f.mon.RecordSuccess(ctx, domain.Attempt{ActorID: &actor, IP: "10.0.0.1", Token: "tok", At: at})
	}

	// 03:00 login.
	night := time.Date(2026, 4, 7, 3, 0, 0, 0, time.UTC)
	signals := f.mon.RecordSuccess(ctx, domain.Attempt{ActorID: &actor, IP: "10.0.0.1", Token: "tok", At: night})
	var found bool
	for _, s := range signals {
		if s.Kind == domain.SignalUnusualTimeLogin {
			found = true
			if s.Evidence["hour"] != "3" {
				t.Errorf("evidence hour = %q", s.Evidence["hour"])
			}
		}
	}
	if !found {
		t.Fatalf("expected unusual-time signal, got %v", signalKinds(signals))
	}

	// A login at an established hour is quiet.
	day := time.Date(2026, 4, 7, 9, 30, 0, 0, time.UTC)
	signals = f.mon.RecordSuccess(ctx, domain.Attempt{ActorID: &actor, IP: "10.0.0.1", Token: "tok", At: day})
	for _, s := range signals {
		if s.Kind == domain.SignalUnusualTimeLogin {
			t.Fatal("established hour flagged as unusual")
		}
	}
}

func TestRecordSuccess_UnusualHourNeedsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	// Exactly the minimum count of prior logins: still not enough.
	for i := 0; i < 5; i++ {
		at := time.Date(2026, 4, 1+i, 9, 0, 0, 0, time.UTC)
		f.mon.RecordSuccess(ctx, domain.Attempt{ActorID: &actor, IP: "10.0.0.1", Token: "tok", At: at})
	}
	night := time.Date(2026, 4, 7, 3, 0, 0, 0, time.UTC)
	signals := f.mon.RecordSuccess(ctx, domain.Attempt{ActorID: &actor, IP: "10.0.0.1", Token: "tok", At: night})
	for _, s := range signals {
		if s.Kind == domain.SignalUnusualTimeLogin {
			t.Fatal("signal emitted with insufficient history")
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	f.mon.RecordSuccess(ctx, domain.Attempt{ActorID: &actor, IP: "10.0.0.1", UserAgent: "ios-app", Token: "tok-a", At: f.clock})
	f.mon.RecordSuccess(ctx, domain.Attempt{ActorID: &actor, IP: "10.0.0.2", UserAgent: "web", Token: "tok-b", At: f.clock.Add(time.Minute)})

	sessions, err := f.mon.Sessions(ctx, actor)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	for _, s := range sessions {
		if s.TerminatedAt != nil {
			t.Errorf("session %s terminated prematurely", s.ID)
		}
	}

	// Activity moves last_activity_at forward.
	later := f.clock.Add(10 * time.Minute)
	f.mon.RecordActivity(ctx, actor, "tok-a", later)
	sessions, _ = f.mon.Sessions(ctx, actor)
	var touched bool
	for _, s := range sessions {
		if s.TokenHash == domain.HashToken("tok-a") && s.LastActivityAt.Equal(later) {
			touched = true
		}
	}
	if !touched {
		t.Error("activity did not touch the session")
	}

	// Logout ends exactly one session.
	f.mon.RecordLogout(ctx, actor, "tok-a")
	sessions, _ = f.mon.Sessions(ctx, actor)
	var live int
	for _, s := range sessions {
		if s.TerminatedAt == nil {
			live++
		}
	}
	if live != 1 {
		t.Fatalf("expected 1 live session after logout, got %d", live)
	}

	// Password reset ends the rest.
	if n := f.mon.RecordPasswordReset(ctx, actor); n != 1 {
		t.Fatalf("password reset terminated %d sessions, want 1", n)
	}
	sessions, _ = f.mon.Sessions(ctx, actor)
	for _, s := range sessions {
		if s.TerminatedAt == nil {
			t.Error("live session survived password reset")
		}
	}
}

func TestRevokeSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	f.mon.RecordSuccess(ctx, domain.Attempt{ActorID: &actor, IP: "10.0.0.1", Token: "tok-a", At: f.clock})
	f.mon.RecordSuccess(ctx, domain.Attempt{ActorID: &actor, IP: "10.0.0.1", Token: "tok-b", At: f.clock})

	n, err := f.mon.RevokeSessions(ctx, actor)
	if err != nil {
		t.Fatalf("RevokeSessions: %v", err)
	}
	if n != 2 {
		t.Fatalf("revoked %d, want 2", n)
	}
}

type brokenSessions struct{ repository.MemorySessions }

func (b *brokenSessions) StartSession(context.Context, domain.Session) error {
	return errors.New("pg down")
}

func (b *brokenSessions) RecentIPs(context.Context, uuid.UUID, time.Time) ([]string, error) {
	return nil, errors.New("pg down")
}

type brokenCounters struct{}

func (brokenCounters) IncrementFailedAttempts(context.Context, uuid.UUID) (int, error) {
	return 0, errors.New("pg down")
}
func (brokenCounters) ResetFailedAttempts(context.Context, uuid.UUID, time.Time) error {
	return errors.New("pg down")
}
func (brokenCounters) SetLockout(context.Context, uuid.UUID, time.Time) error {
	return errors.New("pg down")
}

func TestMonitor_StorageFailuresNeverSurface(t *testing.T) {
	audit := arepo.NewMemory()
	rec := asvc.New(audit, time.Second)
	mon := New(DefaultConfig(), &brokenSessions{}, brokenCounters{}, window.NewMemory(), &capturePublisher{}, rec)

	ctx := context.Background()
	actor := uuid.New()

	// Neither path panics or reports the storage fault to the caller.
	mon.RecordFailure(ctx, domain.Attempt{ActorID: &actor, IP: "10.0.0.1"})
	signals := mon.RecordSuccess(ctx, domain.Attempt{ActorID: &actor, IP: "10.0.0.1", Token: "tok"})
	for _, s := range signals {
		if s.Kind == domain.SignalNewLocationLogin {
			t.Fatal("detection ran on unavailable history")
		}
	}
}
