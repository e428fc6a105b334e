package realtime

import (
	"context"
	"sync"

	"github.com/Quikler/react-url-shortener/internal/platform/metrics"
)

// Hub fans events out to in-process subscribers. Delivery is at most once:
// a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	next   uint64
	buffer int
	done   chan struct{}
	once   sync.Once
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[uint64]chan Event),
		buffer: buffer,
		done:   make(chan struct{}),
	}
}

// Subscribe registers a subscriber. The returned channel is closed when ctx
// ends or the hub is closed.
func (h *Hub) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, h.buffer)

	select {
	case <-h.done:
		close(ch)
		return ch
	default:
	}

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()
	metrics.RealtimeSubscribers.Inc()

	go func() {
		select {
		case <-ctx.Done():
		case <-h.done:
		}
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
		metrics.RealtimeSubscribers.Dec()
	}()

	return ch
}

func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
			metrics.RealtimeEventsTotal.WithLabelValues(e.Type, "delivered").Inc()
		default:
			metrics.RealtimeEventsTotal.WithLabelValues(e.Type, "dropped").Inc()
		}
	}
}

// Len is the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription. Streams see their channel close and return,
// which is what lets graceful shutdown finish with SSE clients attached.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.done) })
}
