package stream

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultBuffer = 16

// Hub fans events out to all active subscribers (SSE clients).
type Hub[T any] struct {
	mu      sync.RWMutex
	subs    map[int]chan T
	next    int
	buffer  int
	dropped atomic.Uint64
}

// New returns an empty hub. buffer <= 0 selects the default per-subscriber buffer.
func New[T any](buffer int) *Hub[T] {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub[T]{subs: make(map[int]chan T), buffer: buffer}
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when the provided context ends.
func (h *Hub[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, h.buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Publish delivers evt to every subscriber without blocking; slow subscribers miss it.
func (h *Hub[T]) Publish(evt T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub[T]) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped counts deliveries skipped because a subscriber buffer was full.
func (h *Hub[T]) Dropped() uint64 {
	return h.dropped.Load()
}
