package gee

import (
	"net/http"
	"time"
)

// Cookie returns the named request cookie value, or "" when absent.
func (c *Context) Cookie(name string) string {
	ck, err := c.Req.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

func (c *Context) SetCookie(ck *http.Cookie) {
	http.SetCookie(c.Writer, ck)
}

// ClearCookie expires a cookie previously set with the same name, path and attributes.
func (c *Context) ClearCookie(ck http.Cookie) {
	ck.Value = ""
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0)
	http.SetCookie(c.Writer, &ck)
}
