// Package cache is the cache-aside layer in front of url storage: a TTL map
// for listing and detail reads, and a ristretto cache guarded by a bloom
// filter for redirects.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/Quikler/react-url-shortener/internal/platform/metrics"
)

type Options struct {
	TTL   time.Duration
	Codes *LocalCache
	Bloom *BloomFilter
	Now   func() time.Time
}

// Store implements urlshortener.UrlStore over UrlRows.
//
// Writes bump gen and drop the entries they stale while holding mu. A read
// remembers gen before touching storage and only stores its result if gen is
// unchanged, so a read that raced a committed write never caches what it saw.
type Store struct {
	rows    urlshortener.UrlRows
	pages   *TTLMap[string, urlshortener.Page[urlshortener.Url]]
	details *TTLMap[string, urlshortener.UrlInfo]
	codes   *LocalCache
	bloom   *BloomFilter

	mu  sync.Mutex
	gen uint64
}

var _ urlshortener.UrlStore = (*Store)(nil)

func NewStore(rows urlshortener.UrlRows, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	return &Store{
		rows:    rows,
		pages:   NewTTLMap[string, urlshortener.Page[urlshortener.Url]](opts.TTL, opts.Now),
		details: NewTTLMap[string, urlshortener.UrlInfo](opts.TTL, opts.Now),
		codes:   opts.Codes,
		bloom:   opts.Bloom,
	}
}

// pageReadAttempts bounds how often GetPage re-reads under concurrent writes.
const pageReadAttempts = 3

func pageKey(pageNumber, pageSize int) string {
	return "urls:" + strconv.Itoa(pageNumber) + ":" + strconv.Itoa(pageSize)
}

func detailKey(id string) string {
	return "urlid-" + id
}

func (s *Store) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// fill runs set only if no write has happened since gen was read.
func (s *Store) fill(gen uint64, set func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		set()
	}
}

// invalidate must run after the storage write has committed.
func (s *Store) invalidate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.pages.Clear()
	if fn != nil {
		fn()
	}
	metrics.CacheOperationsTotal.WithLabelValues("listing", "invalidate").Inc()
}

func (s *Store) GetPage(ctx context.Context, pageNumber, pageSize int) (urlshortener.Page[urlshortener.Url], error) {
	pageNumber, pageSize = urlshortener.ClampPage(pageNumber, pageSize)
	key := pageKey(pageNumber, pageSize)
	if page, ok := s.pages.Get(key); ok {
		metrics.CacheOperationsTotal.WithLabelValues("listing", "hit").Inc()
		return page, nil
	}
	metrics.CacheOperationsTotal.WithLabelValues("listing", "miss").Inc()

	// Count and List are separate reads; a write landing between them is
	// seen as a generation change and the pair is read again
	var page urlshortener.Page[urlshortener.Url]
	for attempt := 1; ; attempt++ {
		gen := s.generation()
		total, err := s.rows.Count(ctx)
		if err != nil {
			return urlshortener.Page[urlshortener.Url]{}, err
		}
		window := urlshortener.NewPage[urlshortener.Url](nil, total, pageNumber, pageSize)
		items, err := s.rows.List(ctx, window.Offset(), pageSize)
		if err != nil {
			return urlshortener.Page[urlshortener.Url]{}, err
		}
		page = urlshortener.NewPage(items, total, pageNumber, pageSize)

		if s.generation() == gen {
			s.fill(gen, func() { s.pages.Set(key, page) })
			return page, nil
		}
		if attempt == pageReadAttempts {
			metrics.CacheOperationsTotal.WithLabelValues("listing", "unstable").Inc()
			return page, nil
		}
	}
}

func (s *Store) GetDetail(ctx context.Context, id string) (urlshortener.UrlInfo, error) {
	key := detailKey(id)
	if info, ok := s.details.Get(key); ok {
		metrics.CacheOperationsTotal.WithLabelValues("detail", "hit").Inc()
		return info, nil
	}
	metrics.CacheOperationsTotal.WithLabelValues("detail", "miss").Inc()

	gen := s.generation()
	info, err := s.rows.FindInfo(ctx, id)
	if err != nil {
		return urlshortener.UrlInfo{}, err
	}
	s.fill(gen, func() { s.details.Set(key, info) })
	return info, nil
}

func (s *Store) Resolve(ctx context.Context, code string) (string, error) {
	if s.bloom != nil && !s.bloom.MightExist(code) {
		metrics.CacheOperationsTotal.WithLabelValues("code", "bloom_reject").Inc()
		return "", urlshortener.ErrUrlNotFound
	}
	if s.codes != nil {
		if url, ok := s.codes.Get(code); ok {
			if url == notFoundSentinel {
				metrics.CacheOperationsTotal.WithLabelValues("code", "negative_hit").Inc()
				return "", urlshortener.ErrUrlNotFound
			}
			metrics.CacheOperationsTotal.WithLabelValues("code", "hit").Inc()
			return url, nil
		}
	}
	metrics.CacheOperationsTotal.WithLabelValues("code", "miss").Inc()

	gen := s.generation()
	original, err := s.rows.FindOriginalByCode(ctx, code)
	if err != nil {
		if errors.Is(err, urlshortener.ErrUrlNotFound) && s.codes != nil {
			s.fill(gen, func() { s.codes.SetNotFound(code) })
		}
		return "", err
	}
	if s.codes != nil {
		s.fill(gen, func() { s.codes.Set(code, original) })
	}
	return original, nil
}

func (s *Store) Create(ctx context.Context, u urlshortener.Url) (int64, error) {
	// added before the insert so a redirect right after commit is never
	// rejected; a failed insert only costs a false positive
	if s.bloom != nil {
		s.bloom.Add(u.ShortCode)
	}
	rows, err := s.rows.Insert(ctx, u)
	if err != nil || rows == 0 {
		return rows, err
	}
	s.invalidate(func() {
		if s.codes != nil {
			s.codes.Set(u.ShortCode, u.Original)
		}
	})
	return rows, nil
}

func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	code, rows, err := s.rows.Delete(ctx, id)
	if err != nil || rows == 0 {
		return rows, err
	}
	s.invalidate(func() {
		s.details.Delete(detailKey(id))
		metrics.CacheOperationsTotal.WithLabelValues("detail", "invalidate").Inc()
		if s.codes != nil && code != "" {
			s.codes.Del(code)
			metrics.CacheOperationsTotal.WithLabelValues("code", "invalidate").Inc()
		}
	})
	return rows, nil
}

func (s *Store) ExistsByOriginal(ctx context.Context, original string) (bool, error) {
	return s.rows.ExistsByOriginal(ctx, original)
}

func (s *Store) ExistsByID(ctx context.Context, id string) (bool, error) {
	return s.rows.ExistsByID(ctx, id)
}

func (s *Store) OwnerOf(ctx context.Context, id string) (string, error) {
	return s.rows.OwnerOf(ctx, id)
}

// Warm loads every stored short code into the bloom filter. It must finish
// before redirects are served or existing codes would be rejected.
func (s *Store) Warm(ctx context.Context) error {
	if s.bloom == nil {
		return nil
	}
	n := 0
	err := s.rows.EachCode(ctx, func(code string) {
		s.bloom.Add(code)
		n++
	})
	if err != nil {
		return err
	}
	slog.Info("cache: bloom filter warmed", "codes", n)
	return nil
}

// Run sweeps expired listing and detail entries until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	go s.details.Run(ctx, interval)
	s.pages.Run(ctx, interval)
}

// Close releases the code cache.
func (s *Store) Close() {
	if s.codes != nil {
		s.codes.Close()
		slog.Info("cache: code cache closed")
	}
}
