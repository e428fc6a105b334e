package middleware

import (
	"net/http"
	"strings"

	"github.com/Quikler/react-url-shortener/gee"
)

const (
	corsMethods = "GET,POST,PUT,DELETE,OPTIONS"
	corsHeaders = "Authorization,Content-Type,X-Request-ID"
)

// CORS allows credentialed requests from the listed origins; the browser
// client needs this for the refresh cookie. Preflight requests end here.
func CORS(allowedOrigins []string) gee.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed[o] = struct{}{}
		}
	}

	return func(ctx *gee.Context) {
		origin := ctx.Req.Header.Get("Origin")
		if _, ok := allowed[origin]; ok && origin != "" {
			ctx.SetHeader("Access-Control-Allow-Origin", origin)
			ctx.SetHeader("Access-Control-Allow-Credentials", "true")
			ctx.Writer.Header().Add("Vary", "Origin")
		}

		if ctx.Method == http.MethodOptions {
			ctx.SetHeader("Access-Control-Allow-Methods", corsMethods)
			ctx.SetHeader("Access-Control-Allow-Headers", corsHeaders)
			ctx.SetHeader("Access-Control-Max-Age", "600")
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}
