package inmemory

import (
	"context"
	"time"

	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/Quikler/react-url-shortener/internal/platform/auth"
	"github.com/google/uuid"
)

type RefreshTokenLedger struct {
	db  *DB
	ttl time.Duration
}

func NewRefreshTokenLedger(db *DB, ttl time.Duration) *RefreshTokenLedger {
	return &RefreshTokenLedger{db: db, ttl: ttl}
}

func (l *RefreshTokenLedger) IssueForUser(ctx context.Context, userID string) (string, error) {
	secret, err := auth.GenerateOpaqueSecret()
	if err != nil {
		return "", err
	}
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	now := l.db.now()
	row := &tokenRow{
		id:        uuid.NewString(),
		userID:    userID,
		hash:      auth.HashSecret(secret),
		createdAt: now,
		expiresAt: now.Add(l.ttl),
	}
	l.db.tokens[row.hash] = row
	onRollback(ctx, func() {
		l.db.mu.Lock()
		defer l.db.mu.Unlock()
		delete(l.db.tokens, row.hash)
	})
	return secret, nil
}

// lookup must be called with the lock held.
func (l *RefreshTokenLedger) lookup(presented string) (*tokenRow, urlshortener.User, error) {
	row, ok := l.db.tokens[auth.HashSecret(presented)]
	if !ok {
		return nil, urlshortener.User{}, urlshortener.ErrRefreshTokenNotFound
	}
	if !row.expiresAt.After(l.db.now()) {
		return nil, urlshortener.User{}, urlshortener.ErrRefreshTokenExpired
	}
	user, ok := l.db.users[row.userID]
	if !ok {
		return nil, urlshortener.User{}, urlshortener.ErrUserNotFound
	}
	return row, user, nil
}

func (l *RefreshTokenLedger) ValidateAndRotate(_ context.Context, presented string) (string, urlshortener.User, error) {
	secret, err := auth.GenerateOpaqueSecret()
	if err != nil {
		return "", urlshortener.User{}, err
	}

	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	row, user, err := l.lookup(presented)
	if err != nil {
		return "", urlshortener.User{}, err
	}
	// same row, new value: the old hash stops matching immediately
	delete(l.db.tokens, row.hash)
	row.hash = auth.HashSecret(secret)
	row.expiresAt = l.db.now().Add(l.ttl)
	l.db.tokens[row.hash] = row
	return secret, user, nil
}

func (l *RefreshTokenLedger) Peek(_ context.Context, presented string) (urlshortener.User, error) {
	l.db.mu.RLock()
	defer l.db.mu.RUnlock()
	_, user, err := l.lookup(presented)
	return user, err
}

func (l *RefreshTokenLedger) Revoke(_ context.Context, presented string) error {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	hash := auth.HashSecret(presented)
	if _, ok := l.db.tokens[hash]; !ok {
		return urlshortener.ErrRefreshTokenNotFound
	}
	delete(l.db.tokens, hash)
	return nil
}

func (l *RefreshTokenLedger) DeleteExpired(_ context.Context) (int64, error) {
	l.db.mu.Lock()
	defer l.db.mu.Unlock()
	now := l.db.now()
	var n int64
	for hash, row := range l.db.tokens {
		if !row.expiresAt.After(now) {
			delete(l.db.tokens, hash)
			n++
		}
	}
	return n, nil
}

// Len is the number of stored token rows.
func (l *RefreshTokenLedger) Len() int {
	l.db.mu.RLock()
	defer l.db.mu.RUnlock()
	return len(l.db.tokens)
}
