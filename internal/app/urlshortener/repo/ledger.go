package repo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/Quikler/react-url-shortener/internal/platform/auth"
	"github.com/Quikler/react-url-shortener/internal/platform/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RefreshTokenLedger stores sha256 hashes of opaque refresh tokens. Rotation
// rewrites the row under a row lock, so two concurrent refreshes with the
// same token can never both succeed.
type RefreshTokenLedger struct {
	pool *pgxpool.Pool
	tx   *db.TxManager
	ttl  time.Duration
}

func NewRefreshTokenLedger(pool *pgxpool.Pool, tx *db.TxManager, ttl time.Duration) *RefreshTokenLedger {
	return &RefreshTokenLedger{pool: pool, tx: tx, ttl: ttl}
}

func (l *RefreshTokenLedger) IssueForUser(ctx context.Context, userID string) (string, error) {
	secret, err := auth.GenerateOpaqueSecret()
	if err != nil {
		return "", err
	}

	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err = db.Conn(ctx, l.pool).Exec(dbctx,
		"INSERT INTO refresh_tokens (id,token_hash,user_id,expires_at) VALUES ($1,$2,$3,$4)",
		uuid.NewString(), auth.HashSecret(secret), userID, time.Now().Add(l.ttl).UTC(),
	)
	if err != nil {
		slog.Error(err.Error())
		return "", err
	}
	return secret, nil
}

type tokenRow struct {
	id        string
	expiresAt time.Time
	user      urlshortener.User
	orphaned  bool
}

// lookup reads the row for presented. forUpdate locks it until the
// surrounding transaction ends.
func (l *RefreshTokenLedger) lookup(ctx context.Context, presented string, forUpdate bool) (tokenRow, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	query := `SELECT t.id::text, t.expires_at, u.id IS NULL,
	COALESCE(u.id::text,''), COALESCE(u.username,''), COALESCE(u.password_hash,''), COALESCE(u.created_at, t.created_at)
	FROM refresh_tokens t LEFT JOIN users u ON u.id = t.user_id
	WHERE t.token_hash = $1`
	if forUpdate {
		query += " FOR UPDATE OF t"
	}

	var row tokenRow
	err := db.Conn(ctx, l.pool).QueryRow(dbctx, query, auth.HashSecret(presented)).Scan(
		&row.id, &row.expiresAt, &row.orphaned,
		&row.user.ID, &row.user.Username, &row.user.PasswordHash, &row.user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tokenRow{}, urlshortener.ErrRefreshTokenNotFound
		}
		slog.Error(err.Error())
		return tokenRow{}, err
	}
	if !row.expiresAt.After(time.Now()) {
		return tokenRow{}, urlshortener.ErrRefreshTokenExpired
	}
	if row.orphaned {
		return tokenRow{}, urlshortener.ErrUserNotFound
	}
	return row, nil
}

func (l *RefreshTokenLedger) ValidateAndRotate(ctx context.Context, presented string) (string, urlshortener.User, error) {
	secret, err := auth.GenerateOpaqueSecret()
	if err != nil {
		return "", urlshortener.User{}, err
	}

	var user urlshortener.User
	err = l.tx.WithinTx(ctx, func(ctx context.Context) error {
		row, err := l.lookup(ctx, presented, true)
		if err != nil {
			return err
		}

		dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		_, err = db.Conn(ctx, l.pool).Exec(dbctx,
			"UPDATE refresh_tokens SET token_hash=$1, expires_at=$2 WHERE id=$3",
			auth.HashSecret(secret), time.Now().Add(l.ttl).UTC(), row.id,
		)
		if err != nil {
			slog.Error(err.Error())
			return err
		}
		user = row.user
		return nil
	})
	if err != nil {
		return "", urlshortener.User{}, err
	}
	return secret, user, nil
}

func (l *RefreshTokenLedger) Peek(ctx context.Context, presented string) (urlshortener.User, error) {
	row, err := l.lookup(ctx, presented, false)
	if err != nil {
		return urlshortener.User{}, err
	}
	return row.user, nil
}

func (l *RefreshTokenLedger) Revoke(ctx context.Context, presented string) error {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := db.Conn(ctx, l.pool).Exec(dbctx, "DELETE FROM refresh_tokens WHERE token_hash=$1", auth.HashSecret(presented))
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	if tag.RowsAffected() == 0 {
		return urlshortener.ErrRefreshTokenNotFound
	}
	return nil
}

func (l *RefreshTokenLedger) DeleteExpired(ctx context.Context) (int64, error) {
	dbctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tag, err := db.Conn(ctx, l.pool).Exec(dbctx, "DELETE FROM refresh_tokens WHERE expires_at <= now()")
	if err != nil {
		slog.Error(err.Error())
		return 0, err
	}
	return tag.RowsAffected(), nil
}
