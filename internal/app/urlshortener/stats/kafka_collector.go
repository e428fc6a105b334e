package stats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/Quikler/react-url-shortener/internal/platform/metrics"
	"github.com/segmentio/kafka-go"
)

// KafkaCollector publishes click events to a topic without waiting for the
// broker. Failed deliveries are counted as dropped.
type KafkaCollector struct {
	writer *kafka.Writer
}

var _ urlshortener.ClickRecorder = (*KafkaCollector)(nil)

func NewKafkaCollector(brokers []string, topic string) *KafkaCollector {
	return &KafkaCollector{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
			Async:    true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					metrics.ClickEventsDroppedTotal.Add(float64(len(messages)))
					slog.Error("click stats: kafka write failed", "err", err, "count", len(messages))
				}
			},
		},
	}
}

func (k *KafkaCollector) Record(ctx context.Context, e urlshortener.ClickEvent) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Error("click stats: marshal event", "err", err)
		return
	}
	// keyed by code so one url's clicks stay on one partition
	err = k.writer.WriteMessages(context.WithoutCancel(ctx), kafka.Message{
		Key:   []byte(e.Code),
		Value: data,
	})
	if err != nil {
		slog.Error("click stats: kafka write failed", "err", err)
	}
}

func (k *KafkaCollector) Close() {
	if err := k.writer.Close(); err != nil {
		slog.Error("click stats: close kafka writer", "err", err)
	}
}
