package content

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash returns the SHA-256 hex digest of the canonical JSON form of v.
// The canonical form sorts object keys at every nesting level, so two
// semantically identical documents hash identically regardless of field
// order, while any value-level difference (including an empty array
// where none existed) changes the digest.
func Hash(v any) (string, error) {
	canonical, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalJSON serializes v with recursively sorted object keys.
// Round-tripping through an untyped value lets encoding/json apply its
// sorted-key map encoding at every depth.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var untyped any
	if err := json.Unmarshal(raw, &untyped); err != nil {
		return nil, fmt.Errorf("reparse document: %w", err)
	}
	canonical, err := json.Marshal(untyped)
	if err != nil {
		return nil, fmt.Errorf("canonicalize document: %w", err)
	}
	return canonical, nil
}
