package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type hs256Service struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func (h *hs256Service) Sign(userID, username string, roles []string) (string, error) {
	if userID == "" {
		return "", errors.New("empty user id")
	}
	if roles == nil {
		roles = []string{}
	}
	now := h.now()

	claims := jwtClaims{
		Username: username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    h.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.ttl)),
		},
	}
	if h.audience != "" {
		claims.Audience = jwt.ClaimStrings{h.audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
}

func (h *hs256Service) Verify(tokenString string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(h.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(h.now),
	}
	if h.audience != "" {
		opts = append(opts, jwt.WithAudience(h.audience))
	}

	var parsed jwtClaims
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &parsed, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected jwt signing method")
		}
		return h.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}

	var exp time.Time
	if parsed.ExpiresAt != nil {
		exp = parsed.ExpiresAt.Time
	}
	return Claims{
		UserID:    parsed.Subject,
		Username:  parsed.Username,
		Roles:     parsed.Roles,
		ID:        parsed.ID,
		ExpiresAt: exp,
	}, nil
}
