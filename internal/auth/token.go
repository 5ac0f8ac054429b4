// Package auth issues and verifies the HMAC-signed bearer tokens used
// by the admin API. Tokens carry the account's role so request
// authorization never needs a user lookup.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Claims is the token payload. Role is the authorization input; Name is
// carried for display and audit trails only.
type Claims struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
	Role string `json:"role"`
	JTI  string `json:"jti"`
	Exp  int64  `json:"exp"`
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// IssueToken serializes the claims and signs them, producing the
// two-part "payload.signature" token format. Both halves are unpadded
// URL-safe base64.
func IssueToken(secret []byte, claims Claims) (string, error) {
	raw, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return encoded + "." + sign(secret, encoded), nil
}

// ParseToken verifies the signature before touching the payload, then
// rejects tokens missing any required claim or past their expiry. Every
// malformed input maps to ErrInvalidToken; only a well-formed, properly
// signed but stale token earns ErrExpiredToken.
func ParseToken(secret []byte, token string) (Claims, error) {
	encoded, signature, ok := strings.Cut(token, ".")
	if !ok || strings.Contains(signature, ".") {
		return Claims{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(signature), []byte(sign(secret, encoded))) {
		return Claims{}, ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}

	switch {
	case claims.Sub == "", claims.Role == "", claims.JTI == "", claims.Exp == 0:
		return Claims{}, ErrInvalidToken
	case time.Now().Unix() >= claims.Exp:
		return Claims{}, ErrExpiredToken
	}
	return claims, nil
}

func sign(secret []byte, encoded string) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
