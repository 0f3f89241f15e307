package services

import (
	"sync"

	"github.com/RipinDensumite/thinwatcher/models"
	"github.com/RipinDensumite/thinwatcher/utils"
)

const defaultSubscriberBuffer = 64

// Subscription is one live viewer of the hub. C is closed when the
// subscription ends, either by Unsubscribe or because the viewer fell behind.
type Subscription struct {
	C  <-chan models.Event
	ch chan models.Event
	id uint64
}

// Hub fans events out to every current subscriber.
type Hub struct {
	mu          sync.Mutex
	subscribers map[uint64]*Subscription
	nextID      uint64
	buffer      int
	closed      bool
	logger      *utils.Logger
}

func NewHub(logger *utils.Logger) *Hub {
	return NewHubWithBuffer(defaultSubscriberBuffer, logger)
}

func NewHubWithBuffer(buffer int, logger *utils.Logger) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subscribers: make(map[uint64]*Subscription),
		buffer:      buffer,
		logger:      logger,
	}
}

func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ch := make(chan models.Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch, id: h.nextID}
	if h.closed {
		// Shutting down: the subscription starts out ended
		close(ch)
		return sub
	}
	h.subscribers[sub.id] = sub
	return sub
}

// Unsubscribe removes sub and closes its channel. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sub)
}

func (h *Hub) remove(sub *Subscription) {
	if _, ok := h.subscribers[sub.id]; !ok {
		return
	}
	delete(h.subscribers, sub.id)
	close(sub.ch)
}

// Publish delivers event to every subscriber without blocking. Sends happen
// under the hub lock, so all subscribers observe the same event order.
// A subscriber with a full buffer is dropped; it must resubscribe and take
// a fresh snapshot.
func (h *Hub) Publish(event models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subscribers {
		select {
		case sub.ch <- event:
		default:
			h.logger.Warn("Dropping slow subscriber", "subscriber", sub.id, "event", event.Type)
			h.remove(sub)
		}
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close ends every subscription. Later subscriptions are closed on arrival.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, sub := range h.subscribers {
		h.remove(sub)
	}
}
