package httpapi

import (
	"net/http"
	"time"

	"github.com/Quikler/react-url-shortener/gee"
	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
	"github.com/Quikler/react-url-shortener/internal/platform/httpmiddleware"
	"github.com/Quikler/react-url-shortener/internal/platform/metrics"
)

const (
	defaultPageNumber = 1
	defaultPageSize   = 5
)

type UrlItem struct {
	ID           string `json:"id"`
	UrlOriginal  string `json:"urlOriginal"`
	UrlShortened string `json:"urlShortened"`
	UserID       string `json:"userId"`
}

type UrlDetail struct {
	UrlItem
	CreatedAt time.Time    `json:"createdAt"`
	Clicks    int64        `json:"clicks"`
	User      UserResponse `json:"user"`
}

type PageResponse struct {
	TotalCount int       `json:"totalCount"`
	TotalPages int       `json:"totalPages"`
	PageNumber int       `json:"pageNumber"`
	PageSize   int       `json:"pageSize"`
	Items      []UrlItem `json:"items"`
}

func (l linkBuilder) item(req *http.Request, u urlshortener.Url) UrlItem {
	return UrlItem{
		ID:           u.ID,
		UrlOriginal:  u.Original,
		UrlShortened: l.build(req, u.ShortCode),
		UserID:       u.UserID,
	}
}

func NewListUrlsHandler(svc *urlshortener.UrlShortenerService, links linkBuilder) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		pageNumber, err := ctx.QueryInt("pageNumber", defaultPageNumber)
		if err != nil {
			ctx.AbortWithError(http.StatusBadRequest, "pageNumber must be an integer")
			return
		}
		pageSize, err := ctx.QueryInt("pageSize", defaultPageSize)
		if err != nil {
			ctx.AbortWithError(http.StatusBadRequest, "pageSize must be an integer")
			return
		}

		page, err := svc.GetAll(ctx.Req.Context(), pageNumber, pageSize)
		if err != nil {
			writeError(ctx, err)
			return
		}

		items := make([]UrlItem, 0, len(page.Items))
		for _, u := range page.Items {
			items = append(items, links.item(ctx.Req, u))
		}
		ctx.JSON(http.StatusOK, PageResponse{
			TotalCount: page.TotalCount,
			TotalPages: page.TotalPages,
			PageNumber: page.PageNumber,
			PageSize:   page.PageSize,
			Items:      items,
		})
	}
}

func NewUrlInfoHandler(svc *urlshortener.UrlShortenerService, links linkBuilder) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		info, err := svc.GetInfo(ctx.Req.Context(), ctx.Param("id"))
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, UrlDetail{
			UrlItem:   links.item(ctx.Req, info.Url),
			CreatedAt: info.CreatedAt,
			Clicks:    info.Clicks,
			User:      UserResponse{ID: info.Owner.ID, Username: info.Owner.Username},
		})
	}
}

// NewCreateUrlHandler takes the original url from the query string, not a body.
func NewCreateUrlHandler(svc *urlshortener.UrlShortenerService, links linkBuilder) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		p, ok := mustGetPrincipal(ctx)
		if !ok {
			return
		}
		u, err := svc.CreateShortUrl(ctx.Req.Context(), ctx.Query("url"), p)
		if err != nil {
			writeError(ctx, err)
			return
		}
		item := links.item(ctx.Req, u)
		ctx.SetHeader("Location", item.UrlShortened)
		ctx.JSON(http.StatusCreated, item)
	}
}

func NewDeleteUrlHandler(svc *urlshortener.UrlShortenerService) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		p, ok := mustGetPrincipal(ctx)
		if !ok {
			return
		}
		if err := svc.DeleteUrl(ctx.Req.Context(), ctx.Param("id"), p); err != nil {
			writeError(ctx, err)
			return
		}
		ctx.Status(http.StatusNoContent)
	}
}

// NewRedirectHandler serves public short links. The click is queued, never
// written inline.
func NewRedirectHandler(svc *urlshortener.UrlShortenerService, status int) gee.HandlerFunc {
	if status != http.StatusMovedPermanently && status != http.StatusFound {
		status = http.StatusFound
	}
	return func(ctx *gee.Context) {
		target, err := svc.RedirectTarget(ctx.Req.Context(), ctx.Param("shortCode"), urlshortener.ClickEvent{
			IP:        httpmiddleware.ClientIP(ctx.Req),
			UserAgent: ctx.Req.UserAgent(),
			Referer:   ctx.Req.Referer(),
		})
		if err != nil {
			writeError(ctx, err)
			return
		}
		metrics.URLRedirectsTotal.Inc()

		ctx.SetHeader("Location", target)
		ctx.Status(status)
	}
}
