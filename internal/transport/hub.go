package transport

import (
	"context"
	"sync"

	"github.com/caremesh/sentinel/internal/broadcast/domain"
)

// Hub is an in-process Transport: subscribers attach to a single channel
// target and receive every payload delivered to it. Slow subscribers drop
// payloads rather than block delivery.
type Hub struct {
	mu   sync.RWMutex
	subs map[domain.Target]map[int]chan domain.Payload
	next int
}

var _ Transport = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subs: make(map[domain.Target]map[int]chan domain.Payload)}
}

// Subscribe registers a subscriber for one target and returns a channel
// which will receive its payloads. The channel is closed when the provided
// context ends.
func (h *Hub) Subscribe(ctx context.Context, target domain.Target) <-chan domain.Payload {
	ch := make(chan domain.Payload, 16)

	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[target] == nil {
		h.subs[target] = make(map[int]chan domain.Payload)
	}
	h.subs[target][id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		if m := h.subs[target]; m != nil {
			delete(m, id)
			if len(m) == 0 {
				delete(h.subs, target)
			}
		}
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Deliver fans the payload out to every subscriber of every target.
func (h *Hub) Deliver(_ context.Context, targets []domain.Target, p domain.Payload) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, t := range targets {
		for _, ch := range h.subs[t] {
			select {
			case ch <- p:
			default:
				// Drop when subscriber is slow to avoid blocking.
			}
		}
	}
	return nil
}
