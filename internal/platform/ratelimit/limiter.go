package ratelimit

import (
	"context"
	"time"
)

// Limiter decides whether one more hit on key fits into limit hits per window.
// retryAfter is only meaningful when allowed is false.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
}
