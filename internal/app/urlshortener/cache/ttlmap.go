package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLMap is a mutex-guarded map whose entries expire after a fixed ttl.
// Expired entries are invisible to Get and removed by Sweep.
type TTLMap[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]entry[V]
	ttl   time.Duration
	now   func() time.Time
}

func NewTTLMap[K comparable, V any](ttl time.Duration, now func() time.Time) *TTLMap[K, V] {
	if now == nil {
		now = time.Now
	}
	return &TTLMap[K, V]{
		items: make(map[K]entry[V]),
		ttl:   ttl,
		now:   now,
	}
}

func (m *TTLMap[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || !m.now().Before(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (m *TTLMap[K, V]) Set(key K, value V) {
	m.mu.Lock()
	m.items[key] = entry[V]{value: value, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
}

func (m *TTLMap[K, V]) Delete(key K) {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
}

func (m *TTLMap[K, V]) Clear() {
	m.mu.Lock()
	clear(m.items)
	m.mu.Unlock()
}

func (m *TTLMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Sweep drops every entry expired at now and reports how many went.
func (m *TTLMap[K, V]) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.items {
		if !now.Before(e.expiresAt) {
			delete(m.items, k)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (m *TTLMap[K, V]) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(m.now()); n > 0 {
				slog.Debug("cache: swept expired entries", "count", n)
			}
		}
	}
}
