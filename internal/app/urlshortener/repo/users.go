package repo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/Quikler/react-url-shortener/internal/platform/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

const uniqueViolation = "23505"

type UsersRepo struct {
	pool *pgxpool.Pool
	cost int
}

func NewUsersRepo(pool *pgxpool.Pool, cost int) *UsersRepo {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &UsersRepo{pool: pool, cost: cost}
}

func (u *UsersRepo) findOne(ctx context.Context, query string, arg any) (urlshortener.User, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var user urlshortener.User
	err := db.Conn(ctx, u.pool).QueryRow(dbctx, query, arg).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return urlshortener.User{}, urlshortener.ErrUserNotFound
		}
		slog.Error(err.Error())
		return urlshortener.User{}, err
	}
	return user, nil
}

func (u *UsersRepo) FindByUsername(ctx context.Context, username string) (urlshortener.User, error) {
	return u.findOne(ctx, "SELECT id::text, username, password_hash, created_at FROM users WHERE username=$1", username)
}

func (u *UsersRepo) FindByID(ctx context.Context, id string) (urlshortener.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return urlshortener.User{}, urlshortener.ErrUserNotFound
	}
	return u.findOne(ctx, "SELECT id::text, username, password_hash, created_at FROM users WHERE id=$1", id)
}

func (u *UsersRepo) Create(ctx context.Context, username, password string) (urlshortener.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		slog.Error(err.Error())
		return urlshortener.User{}, err
	}

	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	user := urlshortener.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
	}
	err = db.Conn(ctx, u.pool).
		QueryRow(dbctx, "INSERT INTO users (id,username,password_hash) VALUES ($1,$2,$3) ON CONFLICT (username) DO NOTHING RETURNING created_at", user.ID, username, user.PasswordHash).
		Scan(&user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return urlshortener.User{}, urlshortener.ErrUsernameTaken
		}
		slog.Error(err.Error())
		return urlshortener.User{}, err
	}
	return user, nil
}

func (u *UsersRepo) CheckPassword(user urlshortener.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func (u *UsersRepo) GetRoles(ctx context.Context, userID string) ([]string, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := db.Conn(ctx, u.pool).Query(dbctx, "SELECT role_name FROM user_roles WHERE user_id=$1 ORDER BY role_name", userID)
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	roles, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	return roles, nil
}

func (u *UsersRepo) EnsureRole(ctx context.Context, role string) error {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if _, err := db.Conn(ctx, u.pool).Exec(dbctx, "INSERT INTO roles (name) VALUES ($1) ON CONFLICT DO NOTHING", role); err != nil {
		slog.Error(err.Error())
		return err
	}
	return nil
}

func (u *UsersRepo) AddToRole(ctx context.Context, userID, role string) error {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := db.Conn(ctx, u.pool).Exec(dbctx, "INSERT INTO user_roles (user_id,role_name) VALUES ($1,$2) ON CONFLICT DO NOTHING", userID, role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return urlshortener.ErrUserNotFound
		}
		slog.Error(err.Error())
		return err
	}
	return nil
}
