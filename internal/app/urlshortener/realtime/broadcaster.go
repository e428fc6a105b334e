package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
)

// Publisher ships an event to every node, this one included.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Broadcaster implements urlshortener.Notifier. Without a remote publisher
// events go straight to the local hub; with one they go through it and come
// back via the relay, falling back to the local hub when it fails.
type Broadcaster struct {
	hub    *Hub
	remote Publisher
}

var _ urlshortener.Notifier = (*Broadcaster)(nil)

func NewBroadcaster(hub *Hub, remote Publisher) *Broadcaster {
	return &Broadcaster{hub: hub, remote: remote}
}

func (b *Broadcaster) BroadcastCreated(u urlshortener.Url) {
	b.send(CreatedEvent(u))
}

func (b *Broadcaster) BroadcastDeleted(id string) {
	b.send(DeletedEvent(id))
}

func (b *Broadcaster) send(e Event) {
	if b.remote != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := b.remote.Publish(ctx, e)
		cancel()
		if err == nil {
			return
		}
		slog.Error("realtime: remote publish failed, delivering locally", "err", err, "type", e.Type)
	}
	b.hub.Publish(e)
}
