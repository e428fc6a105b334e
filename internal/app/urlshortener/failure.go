package urlshortener

import (
	"errors"
	"strings"
)

// Code classifies an expected business failure. Transport maps it to a status.
type Code string

const (
	CodeBadRequest   Code = "BadRequest"
	CodeUnauthorized Code = "Unauthorized"
	CodeForbidden    Code = "Forbidden"
	CodeNotFound     Code = "NotFound"
	CodeConflict     Code = "Conflict"
)

// Failure is an expected outcome that carries one or more human messages.
// Any other error returned by a service is an infrastructure fault.
type Failure struct {
	Code   Code
	Errors []string
}

func (f *Failure) Error() string {
	return string(f.Code) + ": " + strings.Join(f.Errors, "; ")
}

func Fail(code Code, messages ...string) *Failure {
	return &Failure{Code: code, Errors: messages}
}

func BadRequest(messages ...string) *Failure   { return Fail(CodeBadRequest, messages...) }
func Unauthorized(messages ...string) *Failure { return Fail(CodeUnauthorized, messages...) }
func Forbidden(messages ...string) *Failure    { return Fail(CodeForbidden, messages...) }
func NotFound(messages ...string) *Failure     { return Fail(CodeNotFound, messages...) }
func Conflict(messages ...string) *Failure     { return Fail(CodeConflict, messages...) }

// AsFailure reports whether err is, or wraps, a *Failure.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// IsCode reports whether err is a failure with the given code.
func IsCode(err error, code Code) bool {
	f, ok := AsFailure(err)
	return ok && f.Code == code
}

const (
	MsgUrlNotFound         = "Url not found"
	MsgUrlAlreadyExist     = "Url already exist"
	MsgCannotGetUrls       = "Cannot get urls"
	MsgCannotCreateUrl     = "Cannot create url"
	MsgCannotDeleteUrl     = "Cannot delete url"
	MsgNotAuthorizedToUrl  = "User doesn't authorized to url"
	MsgInvalidUrl          = "Invalid url"
	MsgUsernameTaken       = "Username already exist"
	MsgInvalidCredentials  = "Invalid username or password"
	MsgUserNotFound        = "User not found"
	MsgRefreshTokenExpired = "Refresh token expired"
	MsgCannotGetAbout      = "Cannot get about"
	MsgCannotUpdateAbout   = "Cannot update about"

	MsgUsernameRequired  = "Username is required"
	MsgUsernameTooLong   = "Username must be at most 64 characters"
	MsgPasswordTooShort  = "Password must be at least 8 characters"
	MsgPasswordsMismatch = "Passwords do not match"
)
