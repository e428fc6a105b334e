package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Quikler/react-url-shortener/gee"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/Quikler/react-url-shortener/internal/platform/auth"
)

var failureStatus = map[urlshortener.Code]int{
	urlshortener.CodeBadRequest:   http.StatusBadRequest,
	urlshortener.CodeUnauthorized: http.StatusUnauthorized,
	urlshortener.CodeForbidden:    http.StatusForbidden,
	urlshortener.CodeNotFound:     http.StatusNotFound,
	urlshortener.CodeConflict:     http.StatusConflict,
}

// writeError answers a service error. Failures keep their messages; any
// other error is a fault and the client only sees a generic 500.
func writeError(ctx *gee.Context, err error) {
	if f, ok := urlshortener.AsFailure(err); ok {
		status, known := failureStatus[f.Code]
		if !known {
			status = http.StatusBadRequest
		}
		ctx.AbortWithError(status, f.Errors...)
		return
	}
	if errors.Is(err, context.Canceled) && ctx.Req.Context().Err() != nil {
		// client went away; nobody reads the body
		ctx.Abort()
		return
	}
	slog.Error("http: unhandled error",
		"err", err,
		"method", ctx.Method,
		"route", ctx.RoutePattern,
		"request_id", ctx.Req.Header.Get("X-Request-ID"),
	)
	ctx.AbortWithError(http.StatusInternalServerError, "Internal Server Error")
}

// mustGetPrincipal reads the caller set by AuthRequired. On failure the
// response has already been written.
func mustGetPrincipal(ctx *gee.Context) (urlshortener.Principal, bool) {
	identity, ok := auth.GetIdentity(ctx.Req.Context())
	if !ok || identity.UserID == "" {
		ctx.AbortWithError(http.StatusUnauthorized, "Unauthorized")
		return urlshortener.Principal{}, false
	}
	return urlshortener.Principal{UserID: identity.UserID, Roles: identity.Roles}, true
}

// linkBuilder turns a short code into an absolute link. A configured base
// wins; otherwise the link is derived from the request like the browser saw it.
type linkBuilder struct {
	base string
}

func (l linkBuilder) build(req *http.Request, code string) string {
	path := "/" + code
	if l.base != "" {
		return l.base + path
	}
	if req == nil || req.Host == "" {
		return path
	}
	scheme := req.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if req.TLS != nil {
			scheme = "https"
		}
	}
	return scheme + "://" + req.Host + path
}
