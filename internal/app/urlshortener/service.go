package urlshortener

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Quikler/react-url-shortener/internal/platform/trace"
	"github.com/google/uuid"
)

// Options tune the service. CodeAttempts bounds regeneration after a short
// code collision.
type Options struct {
	CodeLength   int
	CodeAttempts int
	Now          func() time.Time
}

// UrlShortenerService orchestrates create, delete, info and redirect.
// Every mutation follows validate, check, authorize, mutate, notify.
type UrlShortenerService struct {
	urls   UrlStore
	codes  ShortCodeGenerator
	guard  AuthorizationGuard
	notify Notifier
	clicks ClickRecorder
	opts   Options
}

func NewUrlShortenerService(urls UrlStore, codes ShortCodeGenerator, notify Notifier, clicks ClickRecorder, opts Options) *UrlShortenerService {
	if opts.CodeLength <= 0 {
		opts.CodeLength = DefaultCodeLength
	}
	if opts.CodeAttempts <= 0 {
		opts.CodeAttempts = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if notify == nil {
		notify = nopNotifier{}
	}
	if clicks == nil {
		clicks = nopClicks{}
	}
	return &UrlShortenerService{
		urls:   urls,
		codes:  codes,
		guard:  NewAuthorizationGuard(urls),
		notify: notify,
		clicks: clicks,
		opts:   opts,
	}
}

func (s *UrlShortenerService) GetAll(ctx context.Context, pageNumber, pageSize int) (Page[Url], error) {
	page, err := s.urls.GetPage(ctx, pageNumber, pageSize)
	if err != nil {
		if ctx.Err() != nil {
			return Page[Url]{}, ctx.Err()
		}
		slog.Error("urls: get page", "err", err)
		return Page[Url]{}, BadRequest(MsgCannotGetUrls)
	}
	return page, nil
}

func (s *UrlShortenerService) GetInfo(ctx context.Context, id string) (UrlInfo, error) {
	if _, err := uuid.Parse(id); err != nil {
		return UrlInfo{}, NotFound(MsgUrlNotFound)
	}
	info, err := s.urls.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUrlNotFound) {
			return UrlInfo{}, NotFound(MsgUrlNotFound)
		}
		return UrlInfo{}, err
	}
	return info, nil
}

// RedirectTarget needs no caller identity: short links are public.
func (s *UrlShortenerService) RedirectTarget(ctx context.Context, code string, click ClickEvent) (string, error) {
	if !IsShortCode(code) {
		return "", NotFound(MsgUrlNotFound)
	}
	original, err := s.urls.Resolve(ctx, code)
	if err != nil {
		if errors.Is(err, ErrUrlNotFound) {
			return "", NotFound(MsgUrlNotFound)
		}
		return "", err
	}
	click.Code = code
	if click.ClickedAt.IsZero() {
		click.ClickedAt = s.opts.Now()
	}
	s.clicks.Record(ctx, click)
	return original, nil
}

// CreateShortUrl stores original under a fresh random code and broadcasts it
// once the write has committed.
func (s *UrlShortenerService) CreateShortUrl(ctx context.Context, original string, p Principal) (u Url, err error) {
	ctx, span := trace.Start(ctx, "urls.create")
	defer func() { trace.End(span, fault(err)) }()

	original = strings.TrimSpace(original)
	if err := ValidateURL(original); err != nil {
		return Url{}, err
	}

	exists, err := s.urls.ExistsByOriginal(ctx, original)
	if err != nil {
		slog.Error("urls: exists by original", "err", err)
		return Url{}, err
	}
	if exists {
		return Url{}, Conflict(MsgUrlAlreadyExist)
	}

	wctx := context.WithoutCancel(ctx)
	for attempt := 1; ; attempt++ {
		code, err := s.codes.Generate(s.opts.CodeLength)
		if err != nil {
			slog.Error("urls: generate code", "err", err)
			return Url{}, err
		}
		u = Url{
			ID:        uuid.NewString(),
			Original:  original,
			ShortCode: code,
			UserID:    p.UserID,
			CreatedAt: s.opts.Now().UTC(),
		}

		rows, err := s.urls.Create(wctx, u)
		switch {
		case err == nil && rows > 0:
			s.notify.BroadcastCreated(u)
			return u, nil
		case err == nil:
			return Url{}, BadRequest(MsgCannotCreateUrl)
		case errors.Is(err, ErrOriginalTaken):
			// lost a race with a concurrent create of the same url
			return Url{}, Conflict(MsgUrlAlreadyExist)
		case errors.Is(err, ErrShortCodeTaken):
			slog.Warn("urls: short code collision", "attempt", attempt, "length", s.opts.CodeLength)
			if attempt >= s.opts.CodeAttempts {
				return Url{}, BadRequest(MsgCannotCreateUrl)
			}
		default:
			slog.Error("urls: create", "err", err)
			return Url{}, err
		}
	}
}

func (s *UrlShortenerService) DeleteUrl(ctx context.Context, id string, p Principal) (err error) {
	ctx, span := trace.Start(ctx, "urls.delete")
	defer func() { trace.End(span, fault(err)) }()

	if _, err := uuid.Parse(id); err != nil {
		return NotFound(MsgUrlNotFound)
	}
	if err := s.guard.Authorize(ctx, p, id); err != nil {
		if _, ok := AsFailure(err); !ok {
			slog.Error("urls: authorize delete", "err", err, "url_id", id)
		}
		return err
	}

	rows, err := s.urls.Delete(context.WithoutCancel(ctx), id)
	if err != nil {
		slog.Error("urls: delete", "err", err, "url_id", id)
		return err
	}
	if rows == 0 {
		return BadRequest(MsgCannotDeleteUrl)
	}
	s.notify.BroadcastDeleted(id)
	return nil
}
