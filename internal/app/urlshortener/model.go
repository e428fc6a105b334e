package urlshortener

import (
	"math"
	"time"
)

const RoleAdmin = "Admin"

type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

type Url struct {
	ID        string    `json:"id"`
	Original  string    `json:"urlOriginal"`
	ShortCode string    `json:"shortCode"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserRef is the public projection of a user.
type UserRef struct {
	ID       string
	Username string
}

// UrlInfo is the detail view: the url plus its owner and click count.
type UrlInfo struct {
	Url
	Clicks int64
	Owner  UserRef
}

// Page is one pagination window over the url collection ordered by creation.
type Page[T any] struct {
	Items      []T
	TotalCount int
	TotalPages int
	PageNumber int
	PageSize   int
}

// ClampPage forces both inputs to at least 1.
func ClampPage(pageNumber, pageSize int) (int, int) {
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	return pageNumber, pageSize
}

// NewPage derives TotalPages as ceil(totalCount/pageSize). Inputs are clamped.
func NewPage[T any](items []T, totalCount, pageNumber, pageSize int) Page[T] {
	pageNumber, pageSize = ClampPage(pageNumber, pageSize)
	if items == nil {
		items = []T{}
	}
	totalPages := totalCount / pageSize
	if totalCount%pageSize != 0 {
		totalPages++
	}
	return Page[T]{
		Items:      items,
		TotalCount: totalCount,
		TotalPages: totalPages,
		PageNumber: pageNumber,
		PageSize:   pageSize,
	}
}

// Offset is the number of rows before the first item of the window. It
// saturates at math.MaxInt, which is past the end of any collection.
func (p Page[T]) Offset() int {
	if p.PageNumber <= 1 || p.PageSize <= 0 {
		return 0
	}
	if p.PageNumber-1 > math.MaxInt/p.PageSize {
		return math.MaxInt
	}
	return (p.PageNumber - 1) * p.PageSize
}

// Principal is the authenticated caller as seen by the domain.
type Principal struct {
	UserID string
	Roles  []string
}

// AuthResult is what every successful identity operation returns.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         UserRef
	Roles        []string
}

// ClickEvent is one served redirect.
type ClickEvent struct {
	Code      string    `json:"code"`
	ClickedAt time.Time `json:"clickedAt"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	Referer   string    `json:"referer"`
}
