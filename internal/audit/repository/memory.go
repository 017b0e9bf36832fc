package repository

import (
	"context"
	"sync"

	"github.com/caremesh/sentinel/internal/audit/domain"
)

var _ domain.Store = (*Memory)(nil)

// Memory is an in-process append-only store, used in tests and when no
// database is configured.
type Memory struct {
	mu      sync.Mutex
	entries []domain.Entry
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Append(_ context.Context, e domain.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of everything appended so far.
func (m *Memory) Entries() []domain.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
