package cache

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener/repo/inmemory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newURL(original, code string) urlshortener.Url {
	return urlshortener.Url{
		ID:        uuid.NewString(),
		Original:  original,
		ShortCode: code,
		UserID:    uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
}

func TestTTLMap_ExpiryAndSweep(t *testing.T) {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	m := NewTTLMap[string, int](time.Minute, c.Now)

	m.Set("a", 1)
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Add(30 * time.Second)
	m.Set("b", 2)
	c.Add(30 * time.Second)

	_, ok = m.Get("a")
	assert.False(t, ok, "entry must expire at exactly ttl")
	_, ok = m.Get("b")
	assert.True(t, ok)

	assert.Equal(t, 1, m.Sweep(c.Now()))
	assert.Equal(t, 1, m.Len())

	m.Clear()
	assert.Zero(t, m.Len())
}

func TestTTLMap_RunStopsOnCancel(t *testing.T) {
	m := NewTTLMap[string, int](time.Millisecond, nil)
	m.Set("a", 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestBloomFilter(t *testing.T) {
	b := NewBloomFilter(1000, 0.01)
	b.Add("abc123")
	assert.True(t, b.MightExist("abc123"))
	assert.False(t, b.MightExist("zzzzzz"))
	assert.Equal(t, uint32(1), b.Count())
}

func TestStore_ListingInvalidatedByWrites(t *testing.T) {
	rows := inmemory.NewUrlsRepo(inmemory.New())
	s := NewStore(rows, Options{TTL: time.Minute})
	ctx := context.Background()

	page, err := s.GetPage(ctx, 1, 5)
	require.NoError(t, err)
	assert.Zero(t, page.TotalCount)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, s.pages.Len())

	u := newURL("https://example.com/a", "aaaaaa")
	n, err := s.Create(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	page, err = s.GetPage(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
	require.Len(t, page.Items, 1)
	assert.Equal(t, u.ID, page.Items[0].ID)

	n, err = s.Delete(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	page, err = s.GetPage(ctx, 1, 5)
	require.NoError(t, err)
	assert.Zero(t, page.TotalCount)
}

func TestStore_PageClamping(t *testing.T) {
	rows := inmemory.NewUrlsRepo(inmemory.New())
	s := NewStore(rows, Options{})
	ctx := context.Background()
	for i, code := range []string{"c00001", "c00002", "c00003"} {
		_, err := s.Create(ctx, newURL("https://example.com/"+string(rune('a'+i)), code))
		require.NoError(t, err)
	}

	page, err := s.GetPage(ctx, 0, -3)
	require.NoError(t, err)
	assert.Equal(t, 1, page.PageNumber)
	assert.Equal(t, 1, page.PageSize)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 1)

	page, err = s.GetPage(ctx, math.MaxInt/2+1, 4)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 1, page.TotalPages)

	page, err = s.GetPage(ctx, 1, math.MaxInt)
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, 1, page.TotalPages)

	page, err = s.GetPage(ctx, 2, math.MaxInt)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

// gatedRows parks the first gates List calls, after they read, until the
// test sends on release.
type gatedRows struct {
	*inmemory.UrlsRepo
	gates   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRows) List(ctx context.Context, offset, limit int) ([]urlshortener.Url, error) {
	items, err := g.UrlsRepo.List(ctx, offset, limit)
	if g.gates.Add(-1) >= 0 {
		g.entered <- struct{}{}
		<-g.release
	}
	return items, err
}

func TestStore_StaleReadIsNotCachedAfterWrite(t *testing.T) {
	rows := &gatedRows{
		UrlsRepo: inmemory.NewUrlsRepo(inmemory.New()),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	rows.gates.Store(pageReadAttempts)
	s := NewStore(rows, Options{TTL: time.Minute})
	ctx := context.Background()

	stale := make(chan urlshortener.Page[urlshortener.Url])
	go func() {
		page, _ := s.GetPage(ctx, 1, 5)
		stale <- page
	}()

	// a write lands during every attempt, so the read never settles
	for i := 0; i < pageReadAttempts; i++ {
		<-rows.entered
		_, err := s.Create(ctx, newURL(fmt.Sprintf("https://example.com/race/%d", i), fmt.Sprintf("race%02d", i)))
		require.NoError(t, err)
		rows.release <- struct{}{}
	}

	got := <-stale
	assert.Equal(t, pageReadAttempts-1, got.TotalCount, "the last attempt saw the state before its write")
	assert.Len(t, got.Items, got.TotalCount)

	page, err := s.GetPage(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, pageReadAttempts, page.TotalCount, "the pre-write page must not have been cached")
}

// countGatedRows parks the first Count call, after it read, until release.
type countGatedRows struct {
	*inmemory.UrlsRepo
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (c *countGatedRows) Count(ctx context.Context) (int, error) {
	n, err := c.UrlsRepo.Count(ctx)
	c.once.Do(func() {
		close(c.entered)
		<-c.release
	})
	return n, err
}

func TestStore_PageCountMatchesItemsAcrossWrite(t *testing.T) {
	rows := &countGatedRows{
		UrlsRepo: inmemory.NewUrlsRepo(inmemory.New()),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	s := NewStore(rows, Options{TTL: time.Minute})
	ctx := context.Background()

	result := make(chan urlshortener.Page[urlshortener.Url])
	go func() {
		page, _ := s.GetPage(ctx, 1, 5)
		result <- page
	}()

	<-rows.entered
	_, err := s.Create(ctx, newURL("https://example.com/between", "betwen"))
	require.NoError(t, err)
	close(rows.release)

	page := <-result
	assert.Equal(t, 1, page.TotalCount)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.TotalPages)
}

func TestStore_DetailInvalidatedOnDelete(t *testing.T) {
	rows := inmemory.NewUrlsRepo(inmemory.New())
	s := NewStore(rows, Options{TTL: time.Minute})
	ctx := context.Background()

	u := newURL("https://example.com/d", "dddddd")
	_, err := s.Create(ctx, u)
	require.NoError(t, err)

	info, err := s.GetDetail(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Original, info.Original)

	_, err = s.Delete(ctx, u.ID)
	require.NoError(t, err)

	_, err = s.GetDetail(ctx, u.ID)
	assert.ErrorIs(t, err, urlshortener.ErrUrlNotFound)
}

// countingRows counts storage lookups by code.
type countingRows struct {
	*inmemory.UrlsRepo
	lookups atomic.Int64
}

func (c *countingRows) FindOriginalByCode(ctx context.Context, code string) (string, error) {
	c.lookups.Add(1)
	return c.UrlsRepo.FindOriginalByCode(ctx, code)
}

func TestStore_ResolveUsesBloomAndCodeCache(t *testing.T) {
	codes, err := NewLocalCache(1000, 1<<20, time.Minute, time.Minute)
	require.NoError(t, err)
	defer codes.Close()

	rows := &countingRows{UrlsRepo: inmemory.NewUrlsRepo(inmemory.New())}
	s := NewStore(rows, Options{Codes: codes, Bloom: NewBloomFilter(1000, 0.01)})
	ctx := context.Background()

	_, err = s.Resolve(ctx, "nope00")
	assert.ErrorIs(t, err, urlshortener.ErrUrlNotFound)
	assert.Zero(t, rows.lookups.Load(), "bloom filter must reject without storage I/O")

	u := newURL("https://example.com/r", "rrrrrr")
	_, err = s.Create(ctx, u)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := s.Resolve(ctx, u.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, u.Original, got)
	}
	assert.Zero(t, rows.lookups.Load(), "create populates the code cache")

	_, err = s.Delete(ctx, u.ID)
	require.NoError(t, err)
	_, err = s.Resolve(ctx, u.ShortCode)
	assert.ErrorIs(t, err, urlshortener.ErrUrlNotFound)
	assert.Equal(t, int64(1), rows.lookups.Load())
}

func TestStore_CreateOverwritesNegativeEntry(t *testing.T) {
	codes, err := NewLocalCache(1000, 1<<20, time.Minute, time.Minute)
	require.NoError(t, err)
	defer codes.Close()

	s := NewStore(inmemory.NewUrlsRepo(inmemory.New()), Options{Codes: codes})
	ctx := context.Background()

	_, err = s.Resolve(ctx, "later1")
	require.ErrorIs(t, err, urlshortener.ErrUrlNotFound)
	v, ok := codes.Get("later1")
	require.True(t, ok)
	assert.Equal(t, notFoundSentinel, v)

	u := newURL("https://example.com/later", "later1")
	_, err = s.Create(ctx, u)
	require.NoError(t, err)

	got, err := s.Resolve(ctx, "later1")
	require.NoError(t, err)
	assert.Equal(t, u.Original, got)
}

func TestStore_WarmLoadsExistingCodes(t *testing.T) {
	rows := inmemory.NewUrlsRepo(inmemory.New())
	ctx := context.Background()
	u := newURL("https://example.com/w", "wwwwww")
	_, err := rows.Insert(ctx, u)
	require.NoError(t, err)

	bloom := NewBloomFilter(1000, 0.01)
	s := NewStore(rows, Options{Bloom: bloom})
	require.NoError(t, s.Warm(ctx))
	assert.True(t, bloom.MightExist(u.ShortCode))

	got, err := s.Resolve(ctx, u.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, u.Original, got)
}
