package stats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/segmentio/kafka-go"
)

// KafkaConsumer persists click events from a topic. All nodes share one
// consumer group so every event is stored once.
type KafkaConsumer struct {
	reader    *kafka.Reader
	sink      ClickSink
	batchSize int
}

func NewKafkaConsumer(brokers []string, topic string, sink ClickSink) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  "click-stats-consumer",
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		sink:      sink,
		batchSize: defaultBatchSize,
	}
}

func (k *KafkaConsumer) Run(ctx context.Context) {
	events := make(chan urlshortener.ClickEvent, k.batchSize)

	go func() {
		defer close(events)
		for {
			msg, err := k.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("click stats: kafka read failed", "err", err)
				continue
			}

			var e urlshortener.ClickEvent
			if err := json.Unmarshal(msg.Value, &e); err != nil {
				slog.Error("click stats: unmarshal event failed", "err", err)
				continue
			}
			select {
			case events <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	runBatches(ctx, events, k.sink, k.batchSize, defaultInterval, "click stats kafka")
}

func (k *KafkaConsumer) Close() {
	if err := k.reader.Close(); err != nil {
		slog.Error("click stats: close kafka reader", "err", err)
	}
}
