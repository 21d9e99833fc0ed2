// Package validators checks user input before it reaches the handlers'
// business logic
package validators

import (
	"errors"
	"net/mail"
	"strings"
)

var (
	ErrEmailEmpty   = errors.New("no email address provided")
	ErrEmailInvalid = errors.New("invalid email address provided")
)

// NormalizeEmail validates e and returns it trimmed and lower cased, the
// form it's stored and looked up in
func NormalizeEmail(e string) (string, error) {
	e = strings.TrimSpace(e)
	if e == "" {
		return "", ErrEmailEmpty
	}

	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e || len(e) > 254 {
		return "", ErrEmailInvalid
	}

	return strings.ToLower(e), nil
}
