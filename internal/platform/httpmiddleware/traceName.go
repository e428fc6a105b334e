package httpmiddleware

import (
	"github.com/Quikler/react-url-shortener/gee"
	"go.opentelemetry.io/otel/trace"
)

// TraceName renames the otelhttp server span after the matched route, so
// /urls/:id yields one span name instead of one per id.
func TraceName() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		route := ctx.RoutePattern
		if route == "" {
			route = "UNMATCHED"
		}
		span := trace.SpanFromContext(ctx.Req.Context())
		span.SetName(ctx.Method + " " + route)
		ctx.Next()
	}
}
