package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Quikler/react-url-shortener/internal/platform/ids"
	"github.com/segmentio/kafka-go"
)

// KafkaRelay publishes events to a topic and feeds the topic back into the
// local hub. Each node reads with its own consumer group so every node sees
// every event.
type KafkaRelay struct {
	writer *kafka.Writer
	reader *kafka.Reader
	hub    *Hub
}

func NewKafkaRelay(brokers []string, topic string, hub *Hub) *KafkaRelay {
	return &KafkaRelay{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     "url-events-" + ids.New(),
			StartOffset: kafka.LastOffset,
			MinBytes:    1,
			MaxBytes:    1e6,
		}),
		hub: hub,
	}
}

func (k *KafkaRelay) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.ID), Value: data})
}

// Run relays topic messages into the hub until ctx is done.
func (k *KafkaRelay) Run(ctx context.Context) {
	for {
		msg, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("realtime: kafka read failed", "err", err)
			continue
		}

		var e Event
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			slog.Error("realtime: unmarshal event failed", "err", err)
			continue
		}
		k.hub.Publish(e)
	}
}

func (k *KafkaRelay) Close() {
	if err := k.writer.Close(); err != nil {
		slog.Error("realtime: close kafka writer", "err", err)
	}
	if err := k.reader.Close(); err != nil {
		slog.Error("realtime: close kafka reader", "err", err)
	}
}
