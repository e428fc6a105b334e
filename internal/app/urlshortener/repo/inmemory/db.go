// Package inmemory implements the url shortener storage ports in process
// memory. It backs STORAGE_DRIVER=memory and the service tests.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
)

type tokenRow struct {
	id        string
	userID    string
	hash      string
	createdAt time.Time
	expiresAt time.Time
}

// DB is the shared state behind every in-memory repository.
type DB struct {
	mu sync.RWMutex

	users  map[string]urlshortener.User
	byName map[string]string
	roles  map[string][]string
	known  map[string]struct{}

	tokens map[string]*tokenRow

	urls []urlshortener.Url

	clicks map[string]int64

	now func() time.Time
}

func New() *DB {
	return &DB{
		users:  make(map[string]urlshortener.User),
		byName: make(map[string]string),
		roles:  make(map[string][]string),
		known:  map[string]struct{}{urlshortener.RoleAdmin: {}},
		tokens: make(map[string]*tokenRow),
		clicks: make(map[string]int64),
		now:    time.Now,
	}
}

// SetClock replaces the time source. Not safe to call concurrently with other methods.
func (db *DB) SetClock(now func() time.Time) {
	db.now = now
}

// Transactor gives WithinTx rollback semantics: writes made through ctx
// register an undo step, and the steps run in reverse when fn fails.
// Isolation is per repository call only; concurrent readers can see a write
// before it is undone.
type Transactor struct{}

type journalKey struct{}

type journal struct {
	mu   sync.Mutex
	undo []func()
}

func (Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// nested calls join the outer transaction
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}
	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		j.rollback()
		return err
	}
	return nil
}

func (j *journal) rollback() {
	j.mu.Lock()
	steps := j.undo
	j.undo = nil
	j.mu.Unlock()
	for i := len(steps) - 1; i >= 0; i-- {
		steps[i]()
	}
}

// onRollback records fn to run if the enclosing WithinTx fails. Outside a
// transaction it does nothing. fn must take the DB lock itself.
func onRollback(ctx context.Context, fn func()) {
	j, ok := ctx.Value(journalKey{}).(*journal)
	if !ok {
		return
	}
	j.mu.Lock()
	j.undo = append(j.undo, fn)
	j.mu.Unlock()
}

// Ping always succeeds; it matches the readiness probe of the postgres pool.
func (db *DB) Ping(context.Context) error { return nil }
