package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener/repo"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener/repo/inmemory"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener/stats"
	"github.com/Quikler/react-url-shortener/internal/platform/config"
	"github.com/Quikler/react-url-shortener/internal/platform/db"
	"github.com/Quikler/react-url-shortener/internal/platform/migrate"
	"github.com/Quikler/react-url-shortener/migrations"
)

type userStore interface {
	urlshortener.CredentialStore
	urlshortener.RoleManager
}

type urlRows interface {
	urlshortener.UrlRows
	stats.ClickSink
}

// storage is one backend's set of repositories.
type storage struct {
	users  userStore
	ledger urlshortener.RefreshTokenLedger
	rows   urlRows
	tx     urlshortener.Transactor
	ping   func(ctx context.Context) error
	close  func()
}

func openStorage(ctx context.Context, cfg config.Config) (*storage, error) {
	switch cfg.StorageDriver {
	case "memory":
		slog.Warn("storage: in-memory driver, data is lost on restart")
		mem := inmemory.New()
		return &storage{
			users:  inmemory.NewUsersRepo(mem, cfg.BcryptCost),
			ledger: inmemory.NewRefreshTokenLedger(mem, cfg.RefreshTokenTTL),
			rows:   inmemory.NewUrlsRepo(mem),
			tx:     inmemory.Transactor{},
			ping:   mem.Ping,
			close:  func() {},
		}, nil
	case "postgres":
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := db.New(dbCtx, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(dbCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	slog.Info("storage: postgres connected")

	if cfg.MigrateOnStart {
		res, err := migrate.Up(ctx, pool, migrations.FS)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		slog.Info("storage: migrations done", "applied", res.AppliedFiles, "skipped", len(res.SkippedFiles))
	}

	tx := db.NewTxManager(pool)
	return &storage{
		users:  repo.NewUsersRepo(pool, cfg.BcryptCost),
		ledger: repo.NewRefreshTokenLedger(pool, tx, cfg.RefreshTokenTTL),
		rows:   repo.NewUrlsRepo(pool),
		tx:     tx,
		ping:   pool.Ping,
		close:  pool.Close,
	}, nil
}
