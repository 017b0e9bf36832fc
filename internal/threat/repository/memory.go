package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caremesh/sentinel/internal/threat/domain"
)

var _ domain.SessionStore = (*MemorySessions)(nil)

// MemorySessions is an in-memory session store for tests and local runs.
type MemorySessions struct {
	mu       sync.Mutex
	sessions []domain.Session
}

func NewMemorySessions() *MemorySessions { return &MemorySessions{} }

func (m *MemorySessions) StartSession(_ context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sessions {
		live := m.sessions[i].TerminatedAt == nil
		if live && m.sessions[i].ActorID == s.ActorID && m.sessions[i].TokenHash == s.TokenHash {
			m.sessions[i].IP = s.IP
			m.sessions[i].UserAgent = s.UserAgent
			m.sessions[i].LastActivityAt = s.LastActivityAt
			return nil
		}
	}
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *MemorySessions) TouchSession(_ context.Context, actorID uuid.UUID, tokenHash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sessions {
		live := m.sessions[i].TerminatedAt == nil
		if live && m.sessions[i].ActorID == actorID && m.sessions[i].TokenHash == tokenHash {
			m.sessions[i].LastActivityAt = at
			return nil
		}
	}
	return domain.ErrSessionNotFound
}

func (m *MemorySessions) TerminateSession(_ context.Context, actorID uuid.UUID, tokenHash string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.sessions {
		live := m.sessions[i].TerminatedAt == nil
		if live && m.sessions[i].ActorID == actorID && m.sessions[i].TokenHash == tokenHash {
			t := at
			m.sessions[i].TerminatedAt = &t
			return nil
		}
	}
	return domain.ErrSessionNotFound
}

func (m *MemorySessions) TerminateAllSessions(_ context.Context, actorID uuid.UUID, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for i := range m.sessions {
		if m.sessions[i].ActorID == actorID && m.sessions[i].TerminatedAt == nil {
			t := at
			m.sessions[i].TerminatedAt = &t
			n++
		}
	}
	return n, nil
}

func (m *MemorySessions) ListSessions(_ context.Context, actorID uuid.UUID) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Session
	for _, s := range m.sessions {
		if s.ActorID == actorID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemorySessions) RecentIPs(_ context.Context, actorID uuid.UUID, since time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	var ips []string
	for _, s := range m.sessions {
		if s.ActorID != actorID || s.IP == "" || s.CreatedAt.Before(since) {
			continue
		}
		if _, ok := seen[s.IP]; ok {
			continue
		}
		seen[s.IP] = struct{}{}
		ips = append(ips, s.IP)
	}
	return ips, nil
}

func (m *MemorySessions) RecentLogins(_ context.Context, actorID uuid.UUID, since time.Time) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var logins []time.Time
	for _, s := range m.sessions {
		if s.ActorID == actorID && !s.CreatedAt.Before(since) {
			logins = append(logins, s.CreatedAt)
		}
	}
	sort.Slice(logins, func(i, j int) bool { return logins[i].Before(logins[j]) })
	return logins, nil
}

var _ domain.CounterStore = (*MemoryCounters)(nil)

// MemoryCounters is an in-memory failure counter for tests and local runs.
type MemoryCounters struct {
	mu      sync.Mutex
	counts  map[uuid.UUID]int
	lockout map[uuid.UUID]time.Time
}

func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{
		counts:  make(map[uuid.UUID]int),
		lockout: make(map[uuid.UUID]time.Time),
	}
}

func (m *MemoryCounters) IncrementFailedAttempts(_ context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[id]++
	return m.counts[id], nil
}

func (m *MemoryCounters) ResetFailedAttempts(_ context.Context, id uuid.UUID, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[id] = 0
	delete(m.lockout, id)
	return nil
}

func (m *MemoryCounters) SetLockout(_ context.Context, id uuid.UUID, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockout[id] = until
	return nil
}

// LockedUntil reports the lockout marker, if any. Test support.
func (m *MemoryCounters) LockedUntil(id uuid.UUID) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.lockout[id]
	return t, ok
}
