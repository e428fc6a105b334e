package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/Quikler/react-url-shortener/internal/platform/metrics"
)

// ExpiredTokenDeleter is the part of the refresh token ledger the sweeper needs.
type ExpiredTokenDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// TokenSweeper deletes expired refresh tokens on a fixed interval.
type TokenSweeper struct {
	ledger   ExpiredTokenDeleter
	interval time.Duration
}

func NewTokenSweeper(ledger ExpiredTokenDeleter, interval time.Duration) *TokenSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &TokenSweeper{ledger: ledger, interval: interval}
}

// Run blocks until ctx is done.
func (s *TokenSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single cleanup pass and reports how many rows went.
func (s *TokenSweeper) SweepOnce(ctx context.Context) int64 {
	n, err := s.ledger.DeleteExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("token sweeper: delete expired", "err", err)
		}
		return 0
	}
	if n > 0 {
		metrics.RefreshTokensSweptTotal.Add(float64(n))
		slog.Info("token sweeper: removed expired refresh tokens", "count", n)
	}
	return n
}
