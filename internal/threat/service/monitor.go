package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	adomain "github.com/caremesh/sentinel/internal/audit/domain"
	bdomain "github.com/caremesh/sentinel/internal/broadcast/domain"
	"github.com/caremesh/sentinel/internal/metrics"
	"github.com/caremesh/sentinel/internal/platform/window"
	"github.com/caremesh/sentinel/internal/threat/domain"
)

// Config bounds the monitor's detections.
type Config struct {
	LockoutThreshold    int
	LockoutDuration     time.Duration
	BruteForceThreshold int
	BruteForceWindow    time.Duration
	KnownIPHorizon      time.Duration
	UsualHoursHorizon   time.Duration
	UsualHoursMinLogins int
}

// DefaultConfig mirrors the platform's production thresholds.
func DefaultConfig() Config {
	return Config{
		LockoutThreshold:    5,
		LockoutDuration:     15 * time.Minute,
		BruteForceThreshold: 10,
		BruteForceWindow:    15 * time.Minute,
		KnownIPHorizon:      30 * 24 * time.Hour,
		UsualHoursHorizon:   7 * 24 * time.Hour,
		UsualHoursMinLogins: 5,
	}
}

// Monitor consumes authentication lifecycle signals and derives sessions and
// threat signals. Everything it does is advisory: a fault in any detection
// or write is logged and suppressed so the authentication flow that
// triggered it is never blocked.
type Monitor struct {
	cfg      Config
	sessions domain.SessionStore
	counters domain.CounterStore
	window   window.Store
	pub      bdomain.Publisher
	audit    adomain.Recorder
	log      zerolog.Logger
	now      func() time.Time

	// armed tracks which IPs currently sit above the brute-force
	// threshold, so one qualifying window emits exactly one signal.
	mu    sync.Mutex
	armed map[string]bool
}

func New(cfg Config, sessions domain.SessionStore, counters domain.CounterStore, win window.Store, pub bdomain.Publisher, audit adomain.Recorder) *Monitor {
	if cfg.LockoutThreshold <= 0 {
		cfg = DefaultConfig()
	}
	return &Monitor{
		cfg:      cfg,
		sessions: sessions,
		counters: counters,
		window:   win,
		pub:      pub,
		audit:    audit,
		log:      zerolog.Nop(),
		now:      time.Now,
		armed:    make(map[string]bool),
	}
}

// SetLogger allows injection of a structured logger.
func (m *Monitor) SetLogger(l zerolog.Logger) { m.log = l }

// SetClock overrides the time source. Test support.
func (m *Monitor) SetClock(now func() time.Time) { m.now = now }

// RecordFailure ingests one failed login attempt. Returns any signals it
// emitted; the caller may ignore them.
func (m *Monitor) RecordFailure(ctx context.Context, a domain.Attempt) []domain.ThreatSignal {
	metrics.IncLoginOutcome("failure")
	if a.At.IsZero() {
		a.At = m.now()
	}
	var signals []domain.ThreatSignal

	if a.ActorID != nil {
		n, err := m.counters.IncrementFailedAttempts(ctx, *a.ActorID)
		if err != nil {
			m.swallow("counter_increment", err)
		} else if n == m.cfg.LockoutThreshold {
			// Edge-triggered: the counter passes the threshold exactly
			// once per run of consecutive failures; a success resets it.
			until := a.At.Add(m.cfg.LockoutDuration)
			if err := m.counters.SetLockout(ctx, *a.ActorID, until); err != nil {
				m.swallow("set_lockout", err)
			}
			sig := domain.ThreatSignal{
				Kind:    domain.SignalAccountLocked,
				ActorID: a.ActorID,
				Evidence: map[string]string{
					"consecutive_failures": strconv.Itoa(n),
					"ip":                   a.IP,
					"locked_until":         until.UTC().Format(time.RFC3339),
				},
				Severity: adomain.SeverityHigh,
				At:       a.At,
			}
			signals = append(signals, sig)
			m.emit(ctx, sig, a)
			m.publish(ctx, bdomain.Event{
				Kind:     bdomain.KindAccountLocked,
				ActorID:  a.ActorID,
				SourceIP: a.IP,
				At:       a.At,
			})
		}
	}

	if a.IP != "" {
		if sig := m.observeIP(ctx, a); sig != nil {
			signals = append(signals, *sig)
		}
	}
	return signals
}

// observeIP feeds the per-IP sliding window and emits the brute-force
// signal when a window first qualifies. The signal re-arms only after the
// count drops back below the threshold.
func (m *Monitor) observeIP(ctx context.Context, a domain.Attempt) *domain.ThreatSignal {
	n, err := m.window.Observe(ctx, a.IP, a.At, m.cfg.BruteForceWindow)
	if err != nil {
		m.swallow("window_observe", err)
		return nil
	}

	m.mu.Lock()
	var fire bool
	if n >= m.cfg.BruteForceThreshold {
		if !m.armed[a.IP] {
			m.armed[a.IP] = true
			fire = true
		}
	} else {
		delete(m.armed, a.IP)
	}
	m.mu.Unlock()

	if !fire {
		return nil
	}
	sig := domain.ThreatSignal{
		Kind:    domain.SignalBruteForce,
		ActorID: a.ActorID,
		Evidence: map[string]string{
			"ip":       a.IP,
			"attempts": strconv.Itoa(n),
			"window":   m.cfg.BruteForceWindow.String(),
		},
		Severity: adomain.SeverityCritical,
		At:       a.At,
	}
	m.emit(ctx, sig, a)
	m.publish(ctx, bdomain.Event{
		Kind:     bdomain.KindBruteForceDetected,
		ActorID:  a.ActorID,
		SourceIP: a.IP,
		At:       a.At,
	})
	return &sig
}

// RecordSuccess ingests one successful login: runs the location and time
// detections against history, then resets counters and writes the session.
// No fault here may block the login that triggered it.
func (m *Monitor) RecordSuccess(ctx context.Context, a domain.Attempt) []domain.ThreatSignal {
	metrics.IncLoginOutcome("success")
	if a.At.IsZero() {
		a.At = m.now()
	}
	if a.ActorID == nil {
		return nil
	}
	actorID := *a.ActorID

	// Detections read history strictly before this login's session exists.
	var signals []domain.ThreatSignal
	if sig := m.detectNewLocation(ctx, actorID, a); sig != nil {
		signals = append(signals, *sig)
	}
	if sig := m.detectUnusualHour(ctx, actorID, a); sig != nil {
		signals = append(signals, *sig)
	}

	// The per-actor failure run resets; the per-IP brute-force detector
	// does not, it re-arms only once the window count drops back below
	// the threshold.
	if err := m.counters.ResetFailedAttempts(ctx, actorID, a.At); err != nil {
		m.swallow("counter_reset", err)
	}

	if a.Token != "" {
		err := m.sessions.StartSession(ctx, domain.Session{
			ID:             uuid.New(),
			ActorID:        actorID,
			TokenHash:      domain.HashToken(a.Token),
			IP:             a.IP,
			UserAgent:      a.UserAgent,
			CreatedAt:      a.At,
			LastActivityAt: a.At,
		})
		if err != nil {
			m.swallow("session_start", err)
		}
	}
	return signals
}

func (m *Monitor) detectNewLocation(ctx context.Context, actorID uuid.UUID, a domain.Attempt) *domain.ThreatSignal {
	if a.IP == "" {
		return nil
	}
	known, err := m.sessions.RecentIPs(ctx, actorID, a.At.Add(-m.cfg.KnownIPHorizon))
	if err != nil {
		m.swallow("recent_ips", err)
		return nil
	}
	// First-ever login has nothing to compare against.
	if len(known) == 0 {
		return nil
	}
	for _, ip := range known {
		if ip == a.IP {
			return nil
		}
	}
	samples := known
	if len(samples) > 5 {
		samples = samples[:5]
	}
	evidence := map[string]string{"ip": a.IP}
	for i, ip := range samples {
		evidence["known_ip_"+strconv.Itoa(i)] = ip
	}
	sig := domain.ThreatSignal{
		Kind:     domain.SignalNewLocationLogin,
		ActorID:  &actorID,
		Evidence: evidence,
		Severity: adomain.SeverityWarning,
		At:       a.At,
	}
	m.emit(ctx, sig, a)
	return &sig
}

func (m *Monitor) detectUnusualHour(ctx context.Context, actorID uuid.UUID, a domain.Attempt) *domain.ThreatSignal {
	logins, err := m.sessions.RecentLogins(ctx, actorID, a.At.Add(-m.cfg.UsualHoursHorizon))
	if err != nil {
		m.swallow("recent_logins", err)
		return nil
	}
	// Too little history to call any hour unusual.
	if len(logins) <= m.cfg.UsualHoursMinLogins {
		return nil
	}
	hours := make(map[int]struct{}, len(logins))
	for _, t := range logins {
		hours[t.UTC().Hour()] = struct{}{}
	}
	hour := a.At.UTC().Hour()
	if _, ok := hours[hour]; ok {
		return nil
	}
	sig := domain.ThreatSignal{
		Kind:    domain.SignalUnusualTimeLogin,
		ActorID: &actorID,
		Evidence: map[string]string{
			"hour":             strconv.Itoa(hour),
			"logins_in_window": strconv.Itoa(len(logins)),
		},
		Severity: adomain.SeverityInfo,
		At:       a.At,
	}
	m.emit(ctx, sig, a)
	return &sig
}

// RecordActivity stamps the live session's last-activity time.
func (m *Monitor) RecordActivity(ctx context.Context, actorID uuid.UUID, token string, at time.Time) {
	if at.IsZero() {
		at = m.now()
	}
	if err := m.sessions.TouchSession(ctx, actorID, domain.HashToken(token), at); err != nil {
		m.swallow("session_touch", err)
	}
}

// RecordLogout terminates the session for (actor, token).
func (m *Monitor) RecordLogout(ctx context.Context, actorID uuid.UUID, token string) {
	metrics.IncLoginOutcome("logout")
	if err := m.sessions.TerminateSession(ctx, actorID, domain.HashToken(token), m.now()); err != nil {
		m.swallow("session_terminate", err)
	}
}

// RecordPasswordReset terminates every live session for the actor.
func (m *Monitor) RecordPasswordReset(ctx context.Context, actorID uuid.UUID) int {
	metrics.IncLoginOutcome("password-reset")
	n, err := m.sessions.TerminateAllSessions(ctx, actorID, m.now())
	if err != nil {
		m.swallow("session_terminate_all", err)
		return 0
	}
	return n
}

// RevokeSessions is the administrative revocation path. Returns the number
// of sessions ended.
func (m *Monitor) RevokeSessions(ctx context.Context, actorID uuid.UUID) (int, error) {
	metrics.IncLoginOutcome("revocation")
	return m.sessions.TerminateAllSessions(ctx, actorID, m.now())
}

// RevokeSession terminates one session by its id.
func (m *Monitor) RevokeSession(ctx context.Context, actorID, sessionID uuid.UUID) error {
	sessions, err := m.sessions.ListSessions(ctx, actorID)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		if s.ID == sessionID && s.TerminatedAt == nil {
			metrics.IncLoginOutcome("revocation")
			return m.sessions.TerminateSession(ctx, actorID, s.TokenHash, m.now())
		}
	}
	return domain.ErrSessionNotFound
}

// Sessions lists the actor's sessions, live and terminated.
func (m *Monitor) Sessions(ctx context.Context, actorID uuid.UUID) ([]domain.Session, error) {
	return m.sessions.ListSessions(ctx, actorID)
}

// emit counts, logs, and audits one signal. Every threat signal produces
// exactly one audit record with matching severity.
func (m *Monitor) emit(ctx context.Context, sig domain.ThreatSignal, a domain.Attempt) {
	metrics.IncThreatSignal(string(sig.Kind), string(sig.Severity))
	m.log.Warn().
		Str("kind", string(sig.Kind)).
		Str("severity", string(sig.Severity)).
		Fields(map[string]any{"evidence": sig.Evidence}).
		Msg("threat signal")
	m.audit.Record(ctx, adomain.Entry{
		ActorID:     sig.ActorID,
		Action:      string(sig.Kind),
		Severity:    sig.Severity,
		IP:          a.IP,
		UserAgent:   a.UserAgent,
		After:       sig.Evidence,
		Description: "threat signal emitted",
		Tags:        []string{adomain.TagSecurity, adomain.TagAuthentication, string(sig.Kind)},
		At:          sig.At,
	})
}

func (m *Monitor) publish(ctx context.Context, ev bdomain.Event) {
	if m.pub == nil {
		return
	}
	if err := m.pub.Publish(ctx, ev); err != nil {
		m.swallow("publish", err)
	}
}

func (m *Monitor) swallow(stage string, err error) {
	metrics.IncMonitorFailure(stage)
	m.log.Error().Err(err).Str("stage", stage).Msg("monitoring fault suppressed")
}
