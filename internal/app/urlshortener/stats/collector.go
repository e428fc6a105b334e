// Package stats counts redirects: collectors take click events off the
// request path and consumers persist them in batches.
package stats

import (
	"context"
	"sync"

	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/Quikler/react-url-shortener/internal/platform/metrics"
)

// ClickSink persists a batch of click events.
type ClickSink interface {
	SaveClicks(ctx context.Context, batch []urlshortener.ClickEvent) error
}

// ChannelCollector queues click events in a bounded channel. A full queue
// drops the event rather than slow the redirect down.
type ChannelCollector struct {
	mu     sync.RWMutex
	ch     chan urlshortener.ClickEvent
	closed bool
}

var _ urlshortener.ClickRecorder = (*ChannelCollector)(nil)

func NewChannelCollector(bufferSize int) *ChannelCollector {
	return &ChannelCollector{
		ch: make(chan urlshortener.ClickEvent, bufferSize),
	}
}

func (c *ChannelCollector) Record(_ context.Context, e urlshortener.ClickEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- e:
	default:
		metrics.ClickEventsDroppedTotal.Inc()
	}
}

func (c *ChannelCollector) Events() <-chan urlshortener.ClickEvent {
	return c.ch
}

// Close stops accepting events. The consumer still saves what is queued.
func (c *ChannelCollector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}
