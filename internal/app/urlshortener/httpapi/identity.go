package httpapi

import (
	"net/http"
	"time"

	"github.com/Quikler/react-url-shortener/gee"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
)

// CookieOptions describes the refresh token cookie. SameSite=None with
// Secure lets a browser client on another origin send it with credentials.
type CookieOptions struct {
	Name     string
	Secure   bool
	SameSite http.SameSite
	TTL      time.Duration
}

func (o CookieOptions) cookie(value string, now time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     o.Name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.SameSite,
		MaxAge:   int(o.TTL / time.Second),
		Expires:  now.Add(o.TTL),
	}
}

func (o CookieOptions) clear(ctx *gee.Context) {
	ctx.ClearCookie(http.Cookie{
		Name:     o.Name,
		Path:     "/",
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	})
}

// field names match case-insensitively, so "userName" binds too
type SignupRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
	Roles []string     `json:"roles"`
}

func writeAuth(ctx *gee.Context, opts CookieOptions, res urlshortener.AuthResult) {
	ctx.SetCookie(opts.cookie(res.RefreshToken, time.Now()))
	writeBundle(ctx, res)
}

func writeBundle(ctx *gee.Context, res urlshortener.AuthResult) {
	ctx.JSON(http.StatusOK, AuthResponse{
		Token: res.AccessToken,
		User:  UserResponse{ID: res.User.ID, Username: res.User.Username},
		Roles: res.Roles,
	})
}

func NewSignupHandler(svc *urlshortener.IdentityService, opts CookieOptions) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		var req SignupRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		res, err := svc.Signup(ctx.Req.Context(), urlshortener.SignupInput{
			Username:        req.Username,
			Password:        req.Password,
			ConfirmPassword: req.ConfirmPassword,
		})
		if err != nil {
			writeError(ctx, err)
			return
		}
		writeAuth(ctx, opts, res)
	}
}

func NewLoginHandler(svc *urlshortener.IdentityService, opts CookieOptions) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		var req LoginRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		res, err := svc.Login(ctx.Req.Context(), req.Username, req.Password)
		if err != nil {
			writeError(ctx, err)
			return
		}
		writeAuth(ctx, opts, res)
	}
}

// NewRefreshHandler rotates the cookie. A rejected token also clears the
// cookie so the browser stops presenting it.
func NewRefreshHandler(svc *urlshortener.IdentityService, opts CookieOptions) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		res, err := svc.Refresh(ctx.Req.Context(), ctx.Cookie(opts.Name))
		if err != nil {
			if urlshortener.IsCode(err, urlshortener.CodeUnauthorized) {
				opts.clear(ctx)
			}
			writeError(ctx, err)
			return
		}
		writeAuth(ctx, opts, res)
	}
}

// NewMeHandler leaves the cookie alone: the token is not rotated here.
func NewMeHandler(svc *urlshortener.IdentityService, opts CookieOptions) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		res, err := svc.Me(ctx.Req.Context(), ctx.Cookie(opts.Name))
		if err != nil {
			writeError(ctx, err)
			return
		}
		writeBundle(ctx, res)
	}
}

func NewLogoutHandler(svc *urlshortener.IdentityService, opts CookieOptions) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		if err := svc.Logout(ctx.Req.Context(), ctx.Cookie(opts.Name)); err != nil {
			writeError(ctx, err)
			return
		}
		opts.clear(ctx)
		ctx.Status(http.StatusNoContent)
	}
}
