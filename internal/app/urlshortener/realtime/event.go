// Package realtime fans committed url changes out to every connected event
// stream, optionally through a Kafka topic shared by all nodes.
package realtime

import (
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/Quikler/react-url-shortener/internal/platform/ids"
)

const (
	EventUrlCreated = "UrlCreated"
	EventUrlDeleted = "UrlDeleted"
)

// Event is one change pushed to subscribers. Url is set for UrlCreated,
// UrlID for UrlDeleted.
type Event struct {
	ID    string            `json:"id"`
	Type  string            `json:"type"`
	Url   *urlshortener.Url `json:"url,omitempty"`
	UrlID string            `json:"urlId,omitempty"`
}

func CreatedEvent(u urlshortener.Url) Event {
	return Event{ID: ids.New(), Type: EventUrlCreated, Url: &u}
}

func DeletedEvent(id string) Event {
	return Event{ID: ids.New(), Type: EventUrlDeleted, UrlID: id}
}
