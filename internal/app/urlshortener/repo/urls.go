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
)

type UrlsRepo struct {
	pool *pgxpool.Pool
}

func NewUrlsRepo(pool *pgxpool.Pool) *UrlsRepo {
	return &UrlsRepo{pool: pool}
}

const urlColumns = "id::text, url_original, short_code, user_id::text, created_at"

func scanUrl(row pgx.Row, u *urlshortener.Url) error {
	return row.Scan(&u.ID, &u.Original, &u.ShortCode, &u.UserID, &u.CreatedAt)
}

func (r *UrlsRepo) Count(ctx context.Context) (int, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var n int
	if err := db.Conn(ctx, r.pool).QueryRow(dbctx, "SELECT count(*) FROM urls").Scan(&n); err != nil {
		slog.Error(err.Error())
		return 0, err
	}
	return n, nil
}

func (r *UrlsRepo) List(ctx context.Context, offset, limit int) ([]urlshortener.Url, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := db.Conn(ctx, r.pool).Query(dbctx,
		"SELECT "+urlColumns+" FROM urls ORDER BY created_at, id OFFSET $1 LIMIT $2", offset, limit)
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	defer rows.Close()

	result := []urlshortener.Url{}
	for rows.Next() {
		var u urlshortener.Url
		if err := scanUrl(rows, &u); err != nil {
			slog.Error(err.Error())
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	return result, nil
}

func (r *UrlsRepo) FindInfo(ctx context.Context, id string) (urlshortener.UrlInfo, error) {
	if _, err := uuid.Parse(id); err != nil {
		return urlshortener.UrlInfo{}, urlshortener.ErrUrlNotFound
	}

	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var info urlshortener.UrlInfo
	err := db.Conn(ctx, r.pool).QueryRow(dbctx, `SELECT s.id::text, s.url_original, s.short_code, s.user_id::text, s.created_at, s.click_count, u.username
	FROM urls s JOIN users u ON u.id = s.user_id WHERE s.id = $1`, id).
		Scan(&info.ID, &info.Original, &info.ShortCode, &info.UserID, &info.CreatedAt, &info.Clicks, &info.Owner.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return urlshortener.UrlInfo{}, urlshortener.ErrUrlNotFound
		}
		slog.Error(err.Error())
		return urlshortener.UrlInfo{}, err
	}
	info.Owner.ID = info.UserID
	return info, nil
}

func (r *UrlsRepo) FindOriginalByCode(ctx context.Context, code string) (string, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	var original string
	if err := db.Conn(ctx, r.pool).QueryRow(dbctx, "SELECT url_original FROM urls WHERE short_code=$1", code).Scan(&original); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", urlshortener.ErrUrlNotFound
		}
		slog.Error(err.Error())
		return "", err
	}
	return original, nil
}

func (r *UrlsRepo) Insert(ctx context.Context, u urlshortener.Url) (int64, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tag, err := db.Conn(ctx, r.pool).Exec(dbctx,
		"INSERT INTO urls (id,url_original,short_code,user_id,created_at) VALUES ($1,$2,$3,$4,$5)",
		u.ID, u.Original, u.ShortCode, u.UserID, u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case "urls_short_code_key":
				return 0, urlshortener.ErrShortCodeTaken
			case "urls_url_original_key":
				return 0, urlshortener.ErrOriginalTaken
			}
		}
		slog.Error(err.Error())
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *UrlsRepo) Delete(ctx context.Context, id string) (string, int64, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var code string
	err := db.Conn(ctx, r.pool).QueryRow(dbctx, "DELETE FROM urls WHERE id=$1 RETURNING short_code", id).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, nil
		}
		slog.Error(err.Error())
		return "", 0, err
	}
	return code, 1, nil
}

func (r *UrlsRepo) exists(ctx context.Context, query string, arg any) (bool, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	var exists bool
	if err := db.Conn(ctx, r.pool).QueryRow(dbctx, query, arg).Scan(&exists); err != nil {
		slog.Error(err.Error())
		return false, err
	}
	return exists, nil
}

func (r *UrlsRepo) ExistsByOriginal(ctx context.Context, original string) (bool, error) {
	return r.exists(ctx, "SELECT EXISTS(SELECT 1 FROM urls WHERE url_original=$1)", original)
}

func (r *UrlsRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	return r.exists(ctx, "SELECT EXISTS(SELECT 1 FROM urls WHERE id=$1)", id)
}

func (r *UrlsRepo) OwnerOf(ctx context.Context, id string) (string, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	var owner string
	if err := db.Conn(ctx, r.pool).QueryRow(dbctx, "SELECT user_id::text FROM urls WHERE id=$1", id).Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", urlshortener.ErrUrlNotFound
		}
		slog.Error(err.Error())
		return "", err
	}
	return owner, nil
}

func (r *UrlsRepo) EachCode(ctx context.Context, fn func(code string)) error {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, "SELECT short_code FROM urls")
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	defer rows.Close()

	var code string
	_, err = pgx.ForEachRow(rows, []any{&code}, func() error {
		fn(code)
		return nil
	})
	if err != nil {
		slog.Error(err.Error())
	}
	return err
}

// SaveClicks stores a batch of click events and bumps the per-url counters
// in one transaction.
func (r *UrlsRepo) SaveClicks(ctx context.Context, batch []urlshortener.ClickEvent) error {
	if len(batch) == 0 {
		return nil
	}

	dbctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(dbctx)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	defer tx.Rollback(dbctx)

	counts := make(map[string]int64)
	rows := make([][]any, 0, len(batch))
	for _, e := range batch {
		counts[e.Code]++
		rows = append(rows, []any{e.Code, e.ClickedAt, e.IP, e.UserAgent, e.Referer})
	}

	if _, err := tx.CopyFrom(dbctx,
		pgx.Identifier{"click_stats"},
		[]string{"short_code", "clicked_at", "ip", "user_agent", "referer"},
		pgx.CopyFromRows(rows),
	); err != nil {
		slog.Error(err.Error())
		return err
	}

	for code, n := range counts {
		if _, err := tx.Exec(dbctx, "UPDATE urls SET click_count = click_count + $1 WHERE short_code=$2", n, code); err != nil {
			slog.Error(err.Error())
			return err
		}
	}

	if err := tx.Commit(dbctx); err != nil {
		slog.Error(err.Error())
		return err
	}
	return nil
}
