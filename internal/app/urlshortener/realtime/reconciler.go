package realtime

import (
	"slices"

	"github.com/Quikler/react-url-shortener/internal/app/urlshortener"
)

// Action tells a viewer what to do after applying an event.
type Action int

const (
	None Action = iota
	Appended
	Refetch
)

func (a Action) String() string {
	switch a {
	case Appended:
		return "appended"
	case Refetch:
		return "refetch"
	default:
		return "none"
	}
}

// Viewport is one client's pagination window over the url list, kept in
// step with the event stream.
//
// A delete inside the window asks for a refetch instead of removing the item
// in place: the rows after it shift across page boundaries, and only the
// server knows what slid into the window.
type Viewport struct {
	PageNumber int
	PageSize   int
	TotalCount int
	Items      []urlshortener.Url
}

// NewViewport starts from a fetched page.
func NewViewport(p urlshortener.Page[urlshortener.Url]) *Viewport {
	v := &Viewport{}
	v.Load(p)
	return v
}

// Load replaces the window with a freshly fetched page.
func (v *Viewport) Load(p urlshortener.Page[urlshortener.Url]) {
	v.PageNumber = p.PageNumber
	v.PageSize = p.PageSize
	v.TotalCount = p.TotalCount
	v.Items = slices.Clone(p.Items)
}

func (v *Viewport) TotalPages() int {
	if v.PageSize <= 0 {
		return 0
	}
	return (v.TotalCount + v.PageSize - 1) / v.PageSize
}

func (v *Viewport) contains(id string) int {
	return slices.IndexFunc(v.Items, func(u urlshortener.Url) bool { return u.ID == id })
}

// ApplyCreated counts the new url and appends it when this window is the
// last page and still has room.
func (v *Viewport) ApplyCreated(u urlshortener.Url) Action {
	if v.contains(u.ID) >= 0 {
		return None
	}
	onLast := v.PageNumber >= max(v.TotalPages(), 1)
	v.TotalCount++
	if onLast && len(v.Items) < v.PageSize {
		v.Items = append(v.Items, u)
		return Appended
	}
	return None
}

// ApplyDeleted uncounts the url and asks for a refetch when it was visible.
func (v *Viewport) ApplyDeleted(id string) Action {
	if v.TotalCount > 0 {
		v.TotalCount--
	}
	i := v.contains(id)
	if i < 0 {
		return None
	}
	v.Items = slices.Delete(v.Items, i, i+1)
	return Refetch
}

// Apply dispatches on the event type.
func (v *Viewport) Apply(e Event) Action {
	switch e.Type {
	case EventUrlCreated:
		if e.Url != nil {
			return v.ApplyCreated(*e.Url)
		}
	case EventUrlDeleted:
		return v.ApplyDeleted(e.UrlID)
	}
	return None
}
