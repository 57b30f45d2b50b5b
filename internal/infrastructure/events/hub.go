// Package events fans out sync and log events to in-process subscribers.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
	"github.com/kirillkom/catalog-image-sync/internal/core/ports"
)

const DefaultBuffer = 64

// Hub is a non-blocking broadcast channel. A subscriber that falls behind loses events
// instead of stalling the publisher.
type Hub struct {
	mu          sync.RWMutex
	nextID      uint64
	subscribers map[uint64]chan domain.Event
	dropped     atomic.Uint64
	onDrop      func(topic string)
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[uint64]chan domain.Event)}
}

// OnDrop registers a callback invoked for every event a full subscriber missed.
func (h *Hub) OnDrop(fn func(topic string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDrop = fn
}

func (h *Hub) Subscribe(buffer int) (<-chan domain.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan domain.Event, buffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subscribers[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *Hub) Publish(topic string, payload any) {
	evt := domain.Event{Topic: topic, Payload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- evt:
		default:
			h.dropped.Add(1)
			if h.onDrop != nil {
				h.onDrop(topic)
			}
		}
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Multi publishes to every non-nil publisher in order.
type Multi []ports.EventPublisher

func (m Multi) Publish(topic string, payload any) {
	for _, p := range m {
		if p != nil {
			p.Publish(topic, payload)
		}
	}
}
