package urlshortener

import (
	"context"
	"errors"
	"log/slog"
)

// RoleManager is the out-of-band side of the credential store: roles are
// only changed by seeding or administration, never by request handlers.
type RoleManager interface {
	EnsureRole(ctx context.Context, role string) error
	AddToRole(ctx context.Context, userID, role string) error
}

// SeedAdmin makes sure the Admin role exists and, when password is set, that
// username exists and holds it. Safe to run on every start.
func SeedAdmin(ctx context.Context, users CredentialStore, roles RoleManager, username, password string) error {
	if err := roles.EnsureRole(ctx, RoleAdmin); err != nil {
		return err
	}
	if username == "" || password == "" {
		return nil
	}

	user, err := users.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, ErrUserNotFound):
		user, err = users.Create(ctx, username, password)
		if errors.Is(err, ErrUsernameTaken) {
			// another replica seeded first
			user, err = users.FindByUsername(ctx, username)
		}
		if err != nil {
			return err
		}
		slog.Info("seed: admin user created", "username", username)
	case err != nil:
		return err
	}

	return roles.AddToRole(ctx, user.ID, RoleAdmin)
}
