package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

const notFoundSentinel = "__nil__"

// LocalCache maps short codes to original urls in a ristretto cache. Codes
// known to be absent are stored as a sentinel with a shorter ttl.
type LocalCache struct {
	cache    *ristretto.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewLocalCache bounds the cache by maxItems entries and maxCost bytes of
// original urls.
func NewLocalCache(maxItems, maxCost int64, ttl, emptyTTL time.Duration) (*LocalCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &LocalCache{
		cache:    cache,
		ttl:      ttl,
		emptyTTL: emptyTTL,
	}, nil
}

func (l *LocalCache) Get(code string) (string, bool) {
	if v, ok := l.cache.Get(code); ok {
		return v.(string), true
	}
	return "", false
}

// Set waits for the write so the next Get observes it; this is what lets a
// create overwrite an earlier negative entry.
func (l *LocalCache) Set(code, url string) {
	l.cache.SetWithTTL(code, url, int64(len(url)), l.ttl)
	l.cache.Wait()
}

func (l *LocalCache) SetNotFound(code string) {
	l.cache.SetWithTTL(code, notFoundSentinel, 1, l.emptyTTL)
	l.cache.Wait()
}

func (l *LocalCache) Del(code string) {
	l.cache.Del(code)
}

func (l *LocalCache) Close() {
	l.cache.Close()
}
