package auth

import (
	"context"
	"slices"
)

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID   string
	Username string
	Roles    []string
	TokenID  string
}

func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
