package inmemory

import (
	"context"
	"slices"
	"time"

	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type UsersRepo struct {
	db   *DB
	cost int
}

func NewUsersRepo(db *DB, cost int) *UsersRepo {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &UsersRepo{db: db, cost: cost}
}

func (r *UsersRepo) FindByUsername(_ context.Context, username string) (urlshortener.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	id, ok := r.db.byName[username]
	if !ok {
		return urlshortener.User{}, urlshortener.ErrUserNotFound
	}
	return r.db.users[id], nil
}

func (r *UsersRepo) FindByID(_ context.Context, id string) (urlshortener.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	u, ok := r.db.users[id]
	if !ok {
		return urlshortener.User{}, urlshortener.ErrUserNotFound
	}
	return u, nil
}

func (r *UsersRepo) Create(ctx context.Context, username, password string) (urlshortener.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return urlshortener.User{}, err
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.byName[username]; ok {
		return urlshortener.User{}, urlshortener.ErrUsernameTaken
	}
	u := urlshortener.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    r.db.now().UTC().Truncate(time.Microsecond),
	}
	r.db.users[u.ID] = u
	r.db.byName[username] = u.ID
	onRollback(ctx, func() {
		r.db.mu.Lock()
		defer r.db.mu.Unlock()
		delete(r.db.users, u.ID)
		delete(r.db.byName, username)
		delete(r.db.roles, u.ID)
	})
	return u, nil
}

func (r *UsersRepo) CheckPassword(user urlshortener.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

func (r *UsersRepo) GetRoles(_ context.Context, userID string) ([]string, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return slices.Clone(r.db.roles[userID]), nil
}

// EnsureRole registers a role name. Idempotent.
func (r *UsersRepo) EnsureRole(_ context.Context, role string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.known[role] = struct{}{}
	return nil
}

// AddToRole grants role to userID. Idempotent.
func (r *UsersRepo) AddToRole(_ context.Context, userID, role string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[userID]; !ok {
		return urlshortener.ErrUserNotFound
	}
	r.db.known[role] = struct{}{}
	if !slices.Contains(r.db.roles[userID], role) {
		r.db.roles[userID] = append(r.db.roles[userID], role)
	}
	return nil
}

// RemoveFromRole revokes role from userID. Idempotent.
func (r *UsersRepo) RemoveFromRole(_ context.Context, userID, role string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.roles[userID] = slices.DeleteFunc(r.db.roles[userID], func(s string) bool { return s == role })
	return nil
}

// Delete removes the user only. Its refresh tokens stay behind and are
// reported as orphaned by the ledger.
func (r *UsersRepo) Delete(_ context.Context, userID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	u, ok := r.db.users[userID]
	if !ok {
		return urlshortener.ErrUserNotFound
	}
	delete(r.db.users, userID)
	delete(r.db.byName, u.Username)
	delete(r.db.roles, userID)
	return nil
}
