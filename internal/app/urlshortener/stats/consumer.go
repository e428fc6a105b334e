package stats

import (
	"context"
	"log/slog"
	"time"

	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/Quikler/react-url-shortener/internal/platform/metrics"
)

const (
	defaultBatchSize = 100
	defaultInterval  = time.Second
)

// Consumer drains a collector into a sink, flushing every batchSize events
// or every interval, whichever comes first.
type Consumer struct {
	sink      ClickSink
	events    <-chan urlshortener.ClickEvent
	batchSize int
	interval  time.Duration
}

func NewConsumer(sink ClickSink, events <-chan urlshortener.ClickEvent) *Consumer {
	return &Consumer{
		sink:      sink,
		events:    events,
		batchSize: defaultBatchSize,
		interval:  defaultInterval,
	}
}

// Run blocks until ctx is done or the event channel closes, flushing what
// is left either way.
func (c *Consumer) Run(ctx context.Context) {
	runBatches(ctx, c.events, c.sink, c.batchSize, c.interval, "click stats")
}

func runBatches(ctx context.Context, events <-chan urlshortener.ClickEvent, sink ClickSink, size int, interval time.Duration, name string) {
	batch := make([]urlshortener.ClickEvent, 0, size)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	flush := func() {
		flushBatch(sink, batch, name)
		// keep the capacity, drop the contents
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			drain(events, &batch, size, flush)
			flush()
			return
		case e, ok := <-events:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= size {
				flush()
			}
		case <-ticker.C:
			if len(batch) > 0 {
				flush()
			}
		}
	}
}

// drain takes what is already queued without waiting for more.
func drain(events <-chan urlshortener.ClickEvent, batch *[]urlshortener.ClickEvent, size int, flush func()) {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			*batch = append(*batch, e)
			if len(*batch) >= size {
				flush()
			}
		default:
			return
		}
	}
}

func flushBatch(sink ClickSink, batch []urlshortener.ClickEvent, name string) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sink.SaveClicks(ctx, batch); err != nil {
		metrics.ClickEventsDroppedTotal.Add(float64(len(batch)))
		slog.Error(name+": flush failed", "err", err, "count", len(batch))
		return
	}
	slog.Debug(name+": flushed", "count", len(batch))
}
