// Package httpapi is the transport layer: it binds requests, calls the
// urlshortener services and maps their failures to status codes. Domain
// rules live in internal/app/urlshortener.
package httpapi

import (
	"net/http"
	"time"

	"github.com/Quikler/react-url-shortener/gee"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener/realtime"
	"github.com/Quikler/react-url-shortener/internal/platform/auth"
	"github.com/Quikler/react-url-shortener/internal/platform/httpmiddleware"
	"github.com/Quikler/react-url-shortener/internal/platform/ratelimit"
)

// Deps is everything the routes need. Limiter may be nil to disable rate
// limiting.
type Deps struct {
	Identity *urlshortener.IdentityService
	Urls     *urlshortener.UrlShortenerService
	About    *urlshortener.AboutService
	Hub      *realtime.Hub
	Tokens   auth.TokenService
	Limiter  ratelimit.Limiter

	Cookie         CookieOptions
	PublicBaseURL  string
	RedirectStatus int
	Heartbeat      time.Duration
}

// RegisterRoutes mounts the whole public surface on the engine root. The
// redirect is a root wildcard; static routes are matched before it.
func RegisterRoutes(r *gee.Engine, d Deps) {
	links := linkBuilder{base: d.PublicBaseURL}
	rl := func(name string, limit int) gee.HandlerFunc {
		return httpmiddleware.RateLimit(d.Limiter, name, limit, time.Minute)
	}

	r.GET("/healthz", func(ctx *gee.Context) {
		ctx.String(http.StatusOK, "ok")
	})

	identity := r.Group("/identity")
	identity.POST("/signup", rl("signup", 3), NewSignupHandler(d.Identity, d.Cookie))
	identity.POST("/login", rl("login", 5), NewLoginHandler(d.Identity, d.Cookie))
	identity.POST("/refresh", rl("refresh", 30), NewRefreshHandler(d.Identity, d.Cookie))
	identity.GET("/me", NewMeHandler(d.Identity, d.Cookie))
	identity.POST("/logout", NewLogoutHandler(d.Identity, d.Cookie))

	urls := r.Group("/urls")
	urls.GET("", NewListUrlsHandler(d.Urls, links))
	urls.GET("/:id", httpmiddleware.AuthRequired(d.Tokens), NewUrlInfoHandler(d.Urls, links))
	urls.POST("", httpmiddleware.AuthRequired(d.Tokens), rl("create", 10), NewCreateUrlHandler(d.Urls, links))
	urls.DELETE("/:id", httpmiddleware.AuthRequired(d.Tokens), NewDeleteUrlHandler(d.Urls))

	r.GET("/hubs/urls", NewEventsHandler(d.Hub, links, d.Heartbeat))

	r.GET("/about", NewGetAboutHandler(d.About))
	r.PUT("/about",
		httpmiddleware.AuthRequired(d.Tokens),
		httpmiddleware.RequireRole(urlshortener.RoleAdmin),
		NewUpdateAboutHandler(d.About),
	)

	r.GET("/:shortCode", rl("redirect", 100), NewRedirectHandler(d.Urls, d.RedirectStatus))
}
