package httpmiddleware

import (
	"net/http"
	"strings"

	"github.com/Quikler/react-url-shortener/gee"
	"github.com/Quikler/react-url-shortener/internal/platform/auth"
)

// parseBearer returns the token from an "Authorization: Bearer <token>"
// header, or "" when the header has any other shape.
func parseBearer(header string) string {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return ""
	}
	return fields[1]
}

func identityFromRequest(ts auth.TokenService, req *http.Request) (auth.Identity, bool) {
	token := parseBearer(req.Header.Get("Authorization"))
	if token == "" {
		return auth.Identity{}, false
	}
	claims, err := ts.Verify(token)
	if err != nil {
		return auth.Identity{}, false
	}
	return auth.Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Roles:    claims.Roles,
		TokenID:  claims.ID,
	}, true
}

// AuthRequired rejects the request with 401 unless it carries a valid access token.
func AuthRequired(ts auth.TokenService) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		if ctx.Req.Header.Get("Authorization") == "" {
			ctx.AbortWithError(http.StatusUnauthorized, "Unauthorized")
			return
		}
		id, ok := identityFromRequest(ts, ctx.Req)
		if !ok {
			ctx.AbortWithError(http.StatusUnauthorized, "Invalid access token")
			return
		}
		ctx.Req = ctx.Req.WithContext(auth.WithIdentity(ctx.Req.Context(), id))
		ctx.Next()
	}
}

// AuthOptional attaches the identity when a valid token is present and
// otherwise lets the request through anonymously.
func AuthOptional(ts auth.TokenService) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		if id, ok := identityFromRequest(ts, ctx.Req); ok {
			ctx.Req = ctx.Req.WithContext(auth.WithIdentity(ctx.Req.Context(), id))
		}
		ctx.Next()
	}
}

// RequireRole must run after AuthRequired.
func RequireRole(role string) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		id, ok := auth.GetIdentity(ctx.Req.Context())
		if !ok {
			ctx.AbortWithError(http.StatusUnauthorized, "Unauthorized")
			return
		}
		if !id.HasRole(role) {
			ctx.AbortWithError(http.StatusForbidden, "Forbidden")
			return
		}
		ctx.Next()
	}
}
