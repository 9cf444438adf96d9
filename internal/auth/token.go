// ABOUTME: Signed session tokens binding a browser cookie to a chat session ID
// ABOUTME: Uses HS256 JWTs with a configurable secret

package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// issuer is written to and required in every session token.
const issuer = "alphabot"

// SessionSigner issues and verifies session tokens.
type SessionSigner struct {
	secret []byte
}

// NewSessionSigner creates a signer with the given secret.
func NewSessionSigner(secret []byte) *SessionSigner {
	return &SessionSigner{secret: secret}
}

// NewRandomSecret returns 32 random bytes for use when no secret is configured.
// Tokens signed with it do not survive a restart, which matches the
// in-memory session lifetime.
func NewRandomSecret() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating session secret: %w", err)
	}
	return b, nil
}

// Sign creates a token for sessionID. A zero ttl produces a token without expiry.
func (s *SessionSigner) Sign(sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  sessionID,
		Issuer:   issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify validates the token and returns the session ID from its "sub" claim.
func (s *SessionSigner) Verify(tokenString string) (sessionID string, err error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	return claims.Subject, nil
}
