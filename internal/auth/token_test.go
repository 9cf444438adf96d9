// ABOUTME: Unit tests for session token signing and verification
// ABOUTME: Tests valid tokens, invalid tokens, expired tokens, and foreign issuers

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSessionSigner_ValidToken(t *testing.T) {
	signer := NewSessionSigner([]byte("test-secret-key-for-jwt-signing"))

	token, err := signer.Sign("3f1a9-0c", time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	got, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != "3f1a9-0c" {
		t.Errorf("Verify() = %q, want %q", got, "3f1a9-0c")
	}
}

func TestSessionSigner_NoExpiry(t *testing.T) {
	signer := NewSessionSigner([]byte("secret"))

	token, err := signer.Sign("abcde-fg", 0)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	if _, err := signer.Verify(token); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}

func TestSessionSigner_InvalidToken(t *testing.T) {
	signer := NewSessionSigner([]byte("test-secret-key-for-jwt-signing"))

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage token", token: "not-a-jwt-token"},
		{name: "malformed JWT", token: "header.payload.signature"},
		{
			name: "wrong secret",
			token: func() string {
				other := NewSessionSigner([]byte("different-secret"))
				token, _ := other.Sign("abcde-fg", time.Hour)
				return token
			}(),
		},
		{
			name: "foreign issuer",
			token: func() string {
				claims := jwt.RegisteredClaims{Subject: "abcde-fg", Issuer: "someone-else"}
				token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret-key-for-jwt-signing"))
				return token
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := signer.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestSessionSigner_ExpiredToken(t *testing.T) {
	signer := NewSessionSigner([]byte("test-secret-key-for-jwt-signing"))

	token, err := signer.Sign("abcde-fg", -time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	_, err = signer.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestSessionSigner_MissingSubject(t *testing.T) {
	signer := NewSessionSigner([]byte("secret"))

	token, err := signer.Sign("", time.Hour)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	_, err = signer.Verify(token)
	if !errors.Is(err, ErrMissingClaim) {
		t.Errorf("Verify() error = %v, want ErrMissingClaim", err)
	}
}

func TestNewRandomSecret(t *testing.T) {
	a, err := NewRandomSecret()
	if err != nil {
		t.Fatalf("NewRandomSecret() error = %v", err)
	}
	b, err := NewRandomSecret()
	if err != nil {
		t.Fatalf("NewRandomSecret() error = %v", err)
	}

	if len(a) != 32 {
		t.Errorf("len = %d, want 32", len(a))
	}
	if string(a) == string(b) {
		t.Error("two random secrets should differ")
	}
}
