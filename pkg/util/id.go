// Package util contains small helpers shared across the application that
// don't belong to any other package
package util

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewID returns a random URL and object key safe identifier
func NewID() string {
	return gonanoid.MustGenerate(idAlphabet, 16)
}
