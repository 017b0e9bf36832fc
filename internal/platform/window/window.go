package window

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// Store counts keyed events inside a trailing time horizon. Used by the
// threat monitor for per-IP brute-force detection.
type Store interface {
	// Observe appends an event for key at the given time and returns the
	// number of events within horizon of it, the new one included.
	Observe(ctx context.Context, key string, at time.Time, horizon time.Duration) (int, error)
	// Count returns the number of events for key within horizon of now.
	Count(ctx context.Context, key string, now time.Time, horizon time.Duration) (int, error)
}

const shardCount = 32

type shard struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

// Memory is a process-local Store. Entries older than the horizon are
// evicted lazily on each access, never by a background sweep. Keys are
// sharded so concurrent observations for distinct keys do not contend on
// one lock, and observations for the same key serialize and lose nothing.
type Memory struct {
	shards [shardCount]*shard
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	m := &Memory{}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[string][]time.Time)}
	}
	return m
}

func (m *Memory) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return m.shards[h.Sum32()%shardCount]
}

// evict drops entries at or before cutoff. Slices are append-ordered, so a
// single scan from the front suffices.
func evict(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}

func (m *Memory) Observe(_ context.Context, key string, at time.Time, horizon time.Duration) (int, error) {
	sh := m.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	ts := evict(sh.entries[key], at.Add(-horizon))
	ts = append(ts, at)
	sh.entries[key] = ts
	return len(ts), nil
}

func (m *Memory) Count(_ context.Context, key string, now time.Time, horizon time.Duration) (int, error) {
	sh := m.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	ts := evict(sh.entries[key], now.Add(-horizon))
	if len(ts) == 0 {
		delete(sh.entries, key)
		return 0, nil
	}
	sh.entries[key] = ts
	return len(ts), nil
}
