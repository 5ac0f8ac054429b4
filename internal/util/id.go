// Package util holds small helpers with no better home.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random 128-bit identifier rendered as hex, with an
// optional type prefix ("jti_..."). Collisions are not checked; the
// entropy makes them a non-concern.
func NewID(prefix string) string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	id := hex.EncodeToString(buf)
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
