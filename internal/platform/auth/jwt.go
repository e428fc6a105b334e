package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the verified content of an access token.
type Claims struct {
	UserID    string
	Username  string
	Roles     []string
	ID        string
	ExpiresAt time.Time
}

type jwtClaims struct {
	Username string   `json:"unique_name,omitempty"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies short-lived access tokens.
type TokenService interface {
	Sign(userID, username string, roles []string) (string, error)
	Verify(token string) (Claims, error)
}

// NewHS256Service fails on any misconfiguration so the process can refuse to start.
func NewHS256Service(secret, issuer, audience string, ttl time.Duration) (TokenService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if issuer == "" {
		return nil, errors.New("jwt issuer is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("jwt ttl must be > 0")
	}
	return &hs256Service{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}
