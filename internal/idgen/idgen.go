// Package idgen generates short, URL-safe identifiers for scanning sessions
// and frame-source bindings.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// ID prefixes.
const (
	SessionPrefix = "ss-"
	BindingPrefix = "fs-"
)

// Alphabet defines the character set used for the random portion of the ID.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
const Length = 10

// Session returns a new session ID.
func Session() (string, error) {
	return WithPrefix(SessionPrefix)
}

// Binding returns a new frame-source binding ID.
func Binding() (string, error) {
	return WithPrefix(BindingPrefix)
}

// WithPrefix returns a new unique ID with the given prefix.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
