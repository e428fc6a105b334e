package urlshortener

import (
	"context"
	"errors"
	"slices"
)

// IsOwnerOrAdmin is the authorization rule for mutating a url.
func IsOwnerOrAdmin(p Principal, ownerID string) bool {
	return slices.Contains(p.Roles, RoleAdmin) || (p.UserID != "" && p.UserID == ownerID)
}

// OwnerLookup is the slice of UrlStore the guard needs.
type OwnerLookup interface {
	ExistsByID(ctx context.Context, id string) (bool, error)
	OwnerOf(ctx context.Context, id string) (string, error)
}

// AuthorizationGuard checks existence before ownership so a missing url is
// reported as NotFound even to callers who could not touch it anyway.
type AuthorizationGuard struct {
	urls OwnerLookup
}

func NewAuthorizationGuard(urls OwnerLookup) AuthorizationGuard {
	return AuthorizationGuard{urls: urls}
}

// Authorize returns nil, a NotFound or Forbidden *Failure, or a storage fault.
func (g AuthorizationGuard) Authorize(ctx context.Context, p Principal, urlID string) error {
	ok, err := g.urls.ExistsByID(ctx, urlID)
	if err != nil {
		return err
	}
	if !ok {
		return NotFound(MsgUrlNotFound)
	}
	if slices.Contains(p.Roles, RoleAdmin) {
		return nil
	}
	owner, err := g.urls.OwnerOf(ctx, urlID)
	if err != nil {
		if errors.Is(err, ErrUrlNotFound) {
			return NotFound(MsgUrlNotFound)
		}
		return err
	}
	if !IsOwnerOrAdmin(p, owner) {
		return Forbidden(MsgNotAuthorizedToUrl)
	}
	return nil
}
