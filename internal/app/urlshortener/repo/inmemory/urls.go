package inmemory

import (
	"context"

	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
)

// UrlsRepo keeps urls in insertion order, which is creation order.
type UrlsRepo struct {
	db *DB
}

func NewUrlsRepo(db *DB) *UrlsRepo {
	return &UrlsRepo{db: db}
}

func (r *UrlsRepo) indexOf(id string) int {
	for i, u := range r.db.urls {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func (r *UrlsRepo) Count(_ context.Context) (int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return len(r.db.urls), nil
}

func (r *UrlsRepo) List(_ context.Context, offset, limit int) ([]urlshortener.Url, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	if offset < 0 || offset >= len(r.db.urls) || limit <= 0 {
		return []urlshortener.Url{}, nil
	}
	end := offset + min(limit, len(r.db.urls)-offset)
	out := make([]urlshortener.Url, end-offset)
	copy(out, r.db.urls[offset:end])
	return out, nil
}

func (r *UrlsRepo) FindInfo(_ context.Context, id string) (urlshortener.UrlInfo, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	i := r.indexOf(id)
	if i < 0 {
		return urlshortener.UrlInfo{}, urlshortener.ErrUrlNotFound
	}
	u := r.db.urls[i]
	return urlshortener.UrlInfo{
		Url:    u,
		Clicks: r.db.clicks[u.ShortCode],
		Owner:  urlshortener.UserRef{ID: u.UserID, Username: r.db.users[u.UserID].Username},
	}, nil
}

func (r *UrlsRepo) FindOriginalByCode(_ context.Context, code string) (string, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, u := range r.db.urls {
		if u.ShortCode == code {
			return u.Original, nil
		}
	}
	return "", urlshortener.ErrUrlNotFound
}

func (r *UrlsRepo) Insert(_ context.Context, u urlshortener.Url) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.urls {
		if existing.Original == u.Original {
			return 0, urlshortener.ErrOriginalTaken
		}
	}
	for _, existing := range r.db.urls {
		if existing.ShortCode == u.ShortCode {
			return 0, urlshortener.ErrShortCodeTaken
		}
	}
	r.db.urls = append(r.db.urls, u)
	return 1, nil
}

func (r *UrlsRepo) Delete(_ context.Context, id string) (string, int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return "", 0, nil
	}
	code := r.db.urls[i].ShortCode
	r.db.urls = append(r.db.urls[:i], r.db.urls[i+1:]...)
	delete(r.db.clicks, code)
	return code, 1, nil
}

func (r *UrlsRepo) ExistsByOriginal(_ context.Context, original string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, u := range r.db.urls {
		if u.Original == original {
			return true, nil
		}
	}
	return false, nil
}

func (r *UrlsRepo) ExistsByID(_ context.Context, id string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return r.indexOf(id) >= 0, nil
}

func (r *UrlsRepo) OwnerOf(_ context.Context, id string) (string, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	i := r.indexOf(id)
	if i < 0 {
		return "", urlshortener.ErrUrlNotFound
	}
	return r.db.urls[i].UserID, nil
}

func (r *UrlsRepo) EachCode(_ context.Context, fn func(code string)) error {
	r.db.mu.RLock()
	codes := make([]string, len(r.db.urls))
	for i, u := range r.db.urls {
		codes[i] = u.ShortCode
	}
	r.db.mu.RUnlock()
	for _, c := range codes {
		fn(c)
	}
	return nil
}

// SaveClicks counts a batch of redirects against their urls.
func (r *UrlsRepo) SaveClicks(_ context.Context, batch []urlshortener.ClickEvent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, e := range batch {
		for _, u := range r.db.urls {
			if u.ShortCode == e.Code {
				r.db.clicks[e.Code]++
				break
			}
		}
	}
	return nil
}
