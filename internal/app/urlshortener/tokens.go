package urlshortener

import "github.com/Quikler/react-url-shortener/internal/platform/auth"

type jwtIssuer struct {
	ts auth.TokenService
}

// NewJWTIssuer adapts the platform token service to the domain TokenIssuer.
func NewJWTIssuer(ts auth.TokenService) TokenIssuer {
	return jwtIssuer{ts: ts}
}

func (j jwtIssuer) Issue(user User, roles []string) (string, error) {
	return j.ts.Sign(user.ID, user.Username, roles)
}
