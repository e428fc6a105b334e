package urlshortener

import (
	"crypto/rand"
	"errors"
)

const (
	DefaultCodeLength = 6
	codeAlphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

var ErrInvalidCodeLength = errors.New("short code length must be between 1 and 32")

// ShortCodeGenerator produces random fixed-length url-safe codes.
type ShortCodeGenerator interface {
	Generate(length int) (string, error)
}

// RandomCodes draws one crypto/rand byte per symbol and maps it mod 62.
// The mapping is slightly biased toward the first 8 symbols; uniqueness is
// enforced by storage, not by the generator.
type RandomCodes struct{}

func (RandomCodes) Generate(length int) (string, error) {
	if length <= 0 || length > maxCodeLength {
		return "", ErrInvalidCodeLength
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

const maxCodeLength = 32

// IsShortCode reports whether s is shaped like a generated code. Lengths are
// not pinned so codes survive a change of the configured length.
func IsShortCode(s string) bool {
	if len(s) == 0 || len(s) > maxCodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z') {
			return false
		}
	}
	return true
}
