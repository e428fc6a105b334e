package urlshortener

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/Quikler/react-url-shortener/internal/platform/metrics"
	"github.com/Quikler/react-url-shortener/internal/platform/trace"
)

// IdentityService runs signup, login, refresh, me and logout. There is no
// server-side session besides the refresh token ledger row.
type IdentityService struct {
	users  CredentialStore
	ledger RefreshTokenLedger
	tokens TokenIssuer
	tx     Transactor
}

func NewIdentityService(users CredentialStore, ledger RefreshTokenLedger, tokens TokenIssuer, tx Transactor) *IdentityService {
	return &IdentityService{
		users:  users,
		ledger: ledger,
		tokens: tokens,
		tx:     tx,
	}
}

func (s *IdentityService) Signup(ctx context.Context, in SignupInput) (res AuthResult, err error) {
	ctx, span := trace.Start(ctx, "identity.signup")
	defer func() { trace.End(span, fault(err)) }()

	if err := in.Validate(); err != nil {
		return AuthResult{}, err
	}
	username := strings.TrimSpace(in.Username)

	if _, err := s.users.FindByUsername(ctx, username); err == nil {
		return AuthResult{}, Conflict(MsgUsernameTaken)
	} else if !errors.Is(err, ErrUserNotFound) {
		slog.Error("identity: signup lookup", "err", err)
		return AuthResult{}, err
	}

	// user and first refresh token commit together
	wctx := context.WithoutCancel(ctx)
	var (
		user    User
		refresh string
	)
	err = s.tx.WithinTx(wctx, func(ctx context.Context) error {
		var err error
		if user, err = s.users.Create(ctx, username, in.Password); err != nil {
			return err
		}
		refresh, err = s.ledger.IssueForUser(ctx, user.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return AuthResult{}, Conflict(MsgUsernameTaken)
		}
		slog.Error("identity: signup", "err", err)
		return AuthResult{}, err
	}

	slog.Info("identity: user signed up", "user_id", user.ID)
	return s.bundle(wctx, user, refresh)
}

// Login answers the same message whether the user is missing or the
// password is wrong.
func (s *IdentityService) Login(ctx context.Context, username, password string) (res AuthResult, err error) {
	ctx, span := trace.Start(ctx, "identity.login")
	defer func() { trace.End(span, fault(err)) }()

	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return AuthResult{}, Unauthorized(MsgInvalidCredentials)
		}
		slog.Error("identity: login lookup", "err", err)
		return AuthResult{}, err
	}
	if !s.users.CheckPassword(user, password) {
		return AuthResult{}, Unauthorized(MsgInvalidCredentials)
	}

	wctx := context.WithoutCancel(ctx)
	refresh, err := s.ledger.IssueForUser(wctx, user.ID)
	if err != nil {
		slog.Error("identity: issue refresh token", "err", err, "user_id", user.ID)
		return AuthResult{}, err
	}
	return s.bundle(wctx, user, refresh)
}

// Refresh rotates the presented token. Roles are re-read so revocations take
// effect here rather than at the next login.
func (s *IdentityService) Refresh(ctx context.Context, presented string) (res AuthResult, err error) {
	ctx, span := trace.Start(ctx, "identity.refresh")
	defer func() { trace.End(span, fault(err)) }()

	if presented == "" {
		metrics.RefreshRotationsTotal.WithLabelValues("not_found").Inc()
		return AuthResult{}, Unauthorized(MsgRefreshTokenExpired)
	}

	wctx := context.WithoutCancel(ctx)
	next, user, err := s.ledger.ValidateAndRotate(wctx, presented)
	if err != nil {
		return AuthResult{}, s.ledgerFailure(err, "identity: refresh")
	}
	metrics.RefreshRotationsTotal.WithLabelValues("rotated").Inc()
	return s.bundle(wctx, user, next)
}

// Me restores a session from the cookie without burning the rotation.
func (s *IdentityService) Me(ctx context.Context, presented string) (res AuthResult, err error) {
	ctx, span := trace.Start(ctx, "identity.me")
	defer func() { trace.End(span, fault(err)) }()

	if presented == "" {
		return AuthResult{}, Unauthorized(MsgRefreshTokenExpired)
	}
	user, err := s.ledger.Peek(ctx, presented)
	if err != nil {
		return AuthResult{}, s.ledgerFailure(err, "identity: me")
	}
	return s.bundle(ctx, user, presented)
}

// Logout drops the ledger row for presented. Unknown tokens are not an error.
func (s *IdentityService) Logout(ctx context.Context, presented string) error {
	if presented == "" {
		return nil
	}
	err := s.ledger.Revoke(context.WithoutCancel(ctx), presented)
	if err != nil && !errors.Is(err, ErrRefreshTokenNotFound) {
		slog.Error("identity: logout", "err", err)
		return err
	}
	return nil
}

func (s *IdentityService) ledgerFailure(err error, op string) error {
	switch {
	case errors.Is(err, ErrRefreshTokenNotFound):
		metrics.RefreshRotationsTotal.WithLabelValues("not_found").Inc()
		return Unauthorized(MsgRefreshTokenExpired)
	case errors.Is(err, ErrRefreshTokenExpired):
		metrics.RefreshRotationsTotal.WithLabelValues("expired").Inc()
		return Unauthorized(MsgRefreshTokenExpired)
	case errors.Is(err, ErrUserNotFound):
		metrics.RefreshRotationsTotal.WithLabelValues("orphaned").Inc()
		return Unauthorized(MsgUserNotFound)
	}
	slog.Error(op, "err", err)
	return err
}

func (s *IdentityService) bundle(ctx context.Context, user User, refresh string) (AuthResult, error) {
	roles, err := s.users.GetRoles(ctx, user.ID)
	if err != nil {
		slog.Error("identity: get roles", "err", err, "user_id", user.ID)
		return AuthResult{}, err
	}
	if roles == nil {
		roles = []string{}
	}
	access, err := s.tokens.Issue(user, roles)
	if err != nil {
		slog.Error("identity: issue access token", "err", err, "user_id", user.ID)
		return AuthResult{}, err
	}
	return AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         UserRef{ID: user.ID, Username: user.Username},
		Roles:        roles,
	}, nil
}

// fault hides expected failures from spans so only real faults mark them red.
func fault(err error) error {
	if _, ok := AsFailure(err); ok {
		return nil
	}
	return err
}
