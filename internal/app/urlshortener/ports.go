package urlshortener

import (
	"context"
	"errors"
)

// Storage sentinels. Repositories translate driver errors into these so the
// services can tell expected outcomes from faults with errors.Is.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrUrlNotFound          = errors.New("url not found")
	ErrShortCodeTaken       = errors.New("short code already taken")
	ErrOriginalTaken        = errors.New("original url already shortened")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
)

// CredentialStore owns users, password hashes and role membership.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	// Create hashes password and inserts the user. ErrUsernameTaken on duplicates.
	Create(ctx context.Context, username, password string) (User, error)
	CheckPassword(user User, password string) bool
	GetRoles(ctx context.Context, userID string) ([]string, error)
}

// RefreshTokenLedger keeps one rotating opaque token per login session.
// Only a hash of each token is stored.
type RefreshTokenLedger interface {
	IssueForUser(ctx context.Context, userID string) (string, error)
	// ValidateAndRotate replaces the presented token in place. It fails with
	// ErrRefreshTokenNotFound, ErrRefreshTokenExpired or ErrUserNotFound.
	ValidateAndRotate(ctx context.Context, presented string) (newToken string, owner User, err error)
	// Peek checks the token like ValidateAndRotate but leaves it untouched.
	Peek(ctx context.Context, presented string) (User, error)
	Revoke(ctx context.Context, presented string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// TokenIssuer mints short-lived access tokens.
type TokenIssuer interface {
	Issue(user User, roles []string) (string, error)
}

// Transactor runs fn in one storage transaction carried by its context.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UrlRows is raw url storage without caching. Rows are ordered by creation.
type UrlRows interface {
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, offset, limit int) ([]Url, error)
	FindInfo(ctx context.Context, id string) (UrlInfo, error)
	FindOriginalByCode(ctx context.Context, code string) (string, error)
	// Insert fails with ErrShortCodeTaken or ErrOriginalTaken on unique violations.
	Insert(ctx context.Context, u Url) (int64, error)
	// Delete returns the short code of the removed row, if any.
	Delete(ctx context.Context, id string) (code string, rows int64, err error)
	ExistsByOriginal(ctx context.Context, original string) (bool, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	OwnerOf(ctx context.Context, id string) (string, error)
	// EachCode streams every stored short code, used to warm filters.
	EachCode(ctx context.Context, fn func(code string)) error
}

// UrlStore is the cache-aside view over UrlRows. Every mutation invalidates
// the entries it can stale before returning.
type UrlStore interface {
	GetPage(ctx context.Context, pageNumber, pageSize int) (Page[Url], error)
	GetDetail(ctx context.Context, id string) (UrlInfo, error)
	Resolve(ctx context.Context, code string) (string, error)
	Create(ctx context.Context, u Url) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
	ExistsByOriginal(ctx context.Context, original string) (bool, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	OwnerOf(ctx context.Context, id string) (string, error)
}

// Notifier fans committed url changes out to connected clients. Best effort.
type Notifier interface {
	BroadcastCreated(u Url)
	BroadcastDeleted(id string)
}

// ClickRecorder receives one event per successful redirect. Best effort.
type ClickRecorder interface {
	Record(ctx context.Context, e ClickEvent)
}

type nopNotifier struct{}

func (nopNotifier) BroadcastCreated(Url)    {}
func (nopNotifier) BroadcastDeleted(string) {}

type nopClicks struct{}

func (nopClicks) Record(context.Context, ClickEvent) {}
