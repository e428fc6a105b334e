package urlshortener

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	maxUsernameLength = 64
	minPasswordLength = 8
)

// ValidateURL accepts absolute http and https urls with a host.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return BadRequest(MsgInvalidUrl)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return BadRequest(MsgInvalidUrl)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return BadRequest(MsgInvalidUrl)
	}
	if strings.TrimSpace(u.Host) == "" {
		return BadRequest(MsgInvalidUrl)
	}
	return nil
}

type SignupInput struct {
	Username        string
	Password        string
	ConfirmPassword string
}

// Validate returns every problem at once so the client can show them together.
func (in SignupInput) Validate() error {
	var msgs []string
	name := strings.TrimSpace(in.Username)
	if name == "" {
		msgs = append(msgs, MsgUsernameRequired)
	} else if utf8.RuneCountInString(name) > maxUsernameLength {
		msgs = append(msgs, MsgUsernameTooLong)
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		msgs = append(msgs, MsgPasswordTooShort)
	}
	if in.Password != in.ConfirmPassword {
		msgs = append(msgs, MsgPasswordsMismatch)
	}
	if len(msgs) > 0 {
		return BadRequest(msgs...)
	}
	return nil
}
