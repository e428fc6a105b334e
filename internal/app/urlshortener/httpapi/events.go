package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Quikler/react-url-shortener/gee"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener/realtime"
)

type deletedPayload struct {
	ID string `json:"id"`
}

// NewEventsHandler streams url changes as server-sent events until the
// client disconnects or the hub closes. Links inside UrlCreated are built
// per subscriber so each one sees its own host.
func NewEventsHandler(hub *realtime.Hub, links linkBuilder, heartbeat time.Duration) gee.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return func(ctx *gee.Context) {
		rc := http.NewResponseController(ctx.Writer)
		// the server write timeout would cut the stream otherwise
		_ = rc.SetWriteDeadline(time.Time{})

		ctx.SetHeader("Content-Type", "text/event-stream")
		ctx.SetHeader("Cache-Control", "no-cache")
		ctx.SetHeader("Connection", "keep-alive")
		ctx.SetHeader("X-Accel-Buffering", "no")
		ctx.Status(http.StatusOK)
		if _, err := io.WriteString(ctx.Writer, ": connected\n\n"); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			slog.Warn("sse: flush unsupported", "err", err)
			return
		}

		events := hub.Subscribe(ctx.Req.Context())
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case e, ok := <-events:
				if !ok {
					return
				}
				if err := writeEvent(ctx.Writer, e, links, ctx.Req); err != nil {
					slog.Debug("sse: write event", "err", err)
					return
				}
			case <-ticker.C:
				if _, err := io.WriteString(ctx.Writer, ": ping\n\n"); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w io.Writer, e realtime.Event, links linkBuilder, req *http.Request) error {
	var payload any
	switch e.Type {
	case realtime.EventUrlCreated:
		if e.Url == nil {
			return nil
		}
		payload = links.item(req, *e.Url)
	case realtime.EventUrlDeleted:
		payload = deletedPayload{ID: e.UrlID}
	default:
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data)
	return err
}
