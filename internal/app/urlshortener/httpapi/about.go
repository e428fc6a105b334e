package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/Quikler/react-url-shortener/gee"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
)

const maxAboutBytes = 64 << 10

func NewGetAboutHandler(svc *urlshortener.AboutService) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		text, err := svc.Get(ctx.Req.Context())
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.String(http.StatusOK, "%s", text)
	}
}

// NewUpdateAboutHandler accepts either a JSON string or the raw text.
func NewUpdateAboutHandler(svc *urlshortener.AboutService) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		body, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Req.Body, maxAboutBytes))
		if err != nil {
			ctx.AbortWithError(http.StatusRequestEntityTooLarge, "About text is too large")
			return
		}
		text := string(body)
		if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '"' {
			if err := json.Unmarshal(trimmed, &text); err != nil {
				ctx.AbortWithError(http.StatusBadRequest, "Invalid json")
				return
			}
		}

		updated, err := svc.Update(ctx.Req.Context(), text)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.String(http.StatusOK, "%s", updated)
	}
}
