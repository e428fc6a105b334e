package repo

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/Quikler/react-url-shortener/internal/platform/db"
	"github.com/Quikler/react-url-shortener/internal/platform/migrate"
	"github.com/Quikler/react-url-shortener/migrations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("skip: TEST_DB_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := db.New(ctx, dsn)
	if err != nil {
		t.Skipf("skip: cannot connect to postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	_, err = migrate.Up(ctx, pool, migrations.FS)
	require.NoError(t, err)
	return pool
}

func uniqueName(prefix string) string {
	return prefix + strconv.FormatInt(time.Now().UnixNano(), 36)
}

func TestUsersRepo_CreateAndRoles(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	users := NewUsersRepo(pool, 4)

	name := uniqueName("alice-")
	u, err := users.Create(ctx, name, "P@ssw0rd!")
	require.NoError(t, err)
	assert.True(t, users.CheckPassword(u, "P@ssw0rd!"))
	assert.False(t, users.CheckPassword(u, "wrong"))

	_, err = users.Create(ctx, name, "other-pass")
	assert.ErrorIs(t, err, urlshortener.ErrUsernameTaken)

	got, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, name, got.Username)

	_, err = users.FindByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, urlshortener.ErrUserNotFound)

	roles, err := users.GetRoles(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)

	require.NoError(t, users.EnsureRole(ctx, urlshortener.RoleAdmin))
	require.NoError(t, users.AddToRole(ctx, u.ID, urlshortener.RoleAdmin))
	require.NoError(t, users.AddToRole(ctx, u.ID, urlshortener.RoleAdmin))
	roles, err = users.GetRoles(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{urlshortener.RoleAdmin}, roles)
}

func TestRefreshTokenLedger_RotationIsSingleUse(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	users := NewUsersRepo(pool, 4)
	ledger := NewRefreshTokenLedger(pool, db.NewTxManager(pool), time.Hour)

	u, err := users.Create(ctx, uniqueName("bob-"), "P@ssw0rd!")
	require.NoError(t, err)
	first, err := ledger.IssueForUser(ctx, u.ID)
	require.NoError(t, err)

	peeked, err := ledger.Peek(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, u.ID, peeked.ID)

	// concurrent refreshes with the same token: exactly one wins
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := ledger.ValidateAndRotate(ctx, first); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)

	_, err = ledger.Peek(ctx, first)
	assert.ErrorIs(t, err, urlshortener.ErrRefreshTokenNotFound)

	second, err := ledger.IssueForUser(ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, ledger.Revoke(ctx, second))
	assert.ErrorIs(t, ledger.Revoke(ctx, second), urlshortener.ErrRefreshTokenNotFound)
}

func TestRefreshTokenLedger_DeleteExpired(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	users := NewUsersRepo(pool, 4)
	ledger := NewRefreshTokenLedger(pool, db.NewTxManager(pool), time.Millisecond)

	u, err := users.Create(ctx, uniqueName("carol-"), "P@ssw0rd!")
	require.NoError(t, err)
	token, err := ledger.IssueForUser(ctx, u.ID)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, _, err = ledger.ValidateAndRotate(ctx, token)
	assert.ErrorIs(t, err, urlshortener.ErrRefreshTokenExpired)

	n, err := ledger.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}

func TestUrlsRepo_Lifecycle(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	users := NewUsersRepo(pool, 4)
	urls := NewUrlsRepo(pool)

	owner, err := users.Create(ctx, uniqueName("dave-"), "P@ssw0rd!")
	require.NoError(t, err)

	u := urlshortener.Url{
		ID:        uuid.NewString(),
		Original:  "https://example.com/" + uniqueName("page-"),
		ShortCode: uniqueName("c"),
		UserID:    owner.ID,
		CreatedAt: time.Now().UTC(),
	}
	rows, err := urls.Insert(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	dup := u
	dup.ID = uuid.NewString()
	dup.ShortCode = uniqueName("d")
	_, err = urls.Insert(ctx, dup)
	assert.ErrorIs(t, err, urlshortener.ErrOriginalTaken)

	dup.Original += "/other"
	dup.ShortCode = u.ShortCode
	_, err = urls.Insert(ctx, dup)
	assert.ErrorIs(t, err, urlshortener.ErrShortCodeTaken)

	original, err := urls.FindOriginalByCode(ctx, u.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, u.Original, original)

	require.NoError(t, urls.SaveClicks(ctx, []urlshortener.ClickEvent{
		{Code: u.ShortCode, ClickedAt: time.Now()},
		{Code: u.ShortCode, ClickedAt: time.Now()},
	}))
	info, err := urls.FindInfo(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Clicks)
	assert.Equal(t, owner.Username, info.Owner.Username)

	ownerID, err := urls.OwnerOf(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, ownerID)

	seen := false
	require.NoError(t, urls.EachCode(ctx, func(code string) {
		if code == u.ShortCode {
			seen = true
		}
	}))
	assert.True(t, seen)

	code, n, err := urls.Delete(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, u.ShortCode, code)

	_, n, err = urls.Delete(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = urls.FindInfo(ctx, u.ID)
	assert.ErrorIs(t, err, urlshortener.ErrUrlNotFound)
}
