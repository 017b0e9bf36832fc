package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caremesh/sentinel/internal/directory/domain"
)

var _ domain.Store = (*Memory)(nil)

// Memory is an in-memory directory store for tests and local runs.
type Memory struct {
	mu     sync.Mutex
	actors map[uuid.UUID]domain.Actor
}

func NewMemory() *Memory {
	return &Memory{actors: make(map[uuid.UUID]domain.Actor)}
}

// Put inserts or replaces an actor. Test support.
func (m *Memory) Put(a domain.Actor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actors[a.ID] = a
}

func (m *Memory) GetActor(_ context.Context, id uuid.UUID) (domain.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actors[id]
	if !ok {
		return domain.Actor{}, domain.ErrNotFound
	}
	return a, nil
}

func (m *Memory) ListActors(_ context.Context) ([]domain.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Actor, 0, len(m.actors))
	for _, a := range m.actors {
		out = append(out, a)
	}
	return out, nil
}

func (m *Memory) IncrementFailedAttempts(_ context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actors[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	a.FailedAttempts++
	m.actors[id] = a
	return a.FailedAttempts, nil
}

func (m *Memory) ResetFailedAttempts(_ context.Context, id uuid.UUID, loginAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actors[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.LastLoginAt = &loginAt
	m.actors[id] = a
	return nil
}

func (m *Memory) SetLockout(_ context.Context, id uuid.UUID, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actors[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.LockedUntil = &until
	m.actors[id] = a
	return nil
}
