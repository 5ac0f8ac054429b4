package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var secret = []byte("test-secret")

func validClaims() Claims {
	return Claims{
		Sub:  "user-1",
		Name: "Avery",
		Role: "editor",
		JTI:  "jti-1",
		Exp:  time.Now().Add(time.Hour).Unix(),
	}
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	token, err := IssueToken(secret, validClaims())
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	claims, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Sub != "user-1" || claims.Role != "editor" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := IssueToken(secret, validClaims())
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken([]byte("other-secret"), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ParseToken() error = %v, want ErrInvalidToken", err)
	}
}

func TestParseRejectsTamperedPayload(t *testing.T) {
	token, err := IssueToken(secret, validClaims())
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	parts := strings.Split(token, ".")
	tampered := parts[0][:len(parts[0])-2] + "xx." + parts[1]
	if _, err := ParseToken(secret, tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ParseToken() error = %v, want ErrInvalidToken", err)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	claims := validClaims()
	claims.Exp = time.Now().Add(-time.Minute).Unix()
	token, err := IssueToken(secret, claims)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken(secret, token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("ParseToken() error = %v, want ErrExpiredToken", err)
	}
}

func TestParseRejectsMissingRole(t *testing.T) {
	claims := validClaims()
	claims.Role = ""
	token, err := IssueToken(secret, claims)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken(secret, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ParseToken() error = %v, want ErrInvalidToken", err)
	}
}
