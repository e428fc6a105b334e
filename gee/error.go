package gee

// ErrorResponse is the body of every failed request. Clients must expect
// more than one message.
type ErrorResponse struct {
	Errors    []string `json:"errors"`
	RequestID string   `json:"requestId,omitempty"`
}

func NewErrorResponse(c *Context, messages ...string) ErrorResponse {
	if len(messages) == 0 {
		messages = []string{"Unknown error"}
	}
	return ErrorResponse{
		Errors:    messages,
		RequestID: c.Req.Header.Get("X-Request-ID"),
	}
}
