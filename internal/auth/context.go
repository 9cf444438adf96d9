// ABOUTME: Request context helpers for the resolved chat session ID
// ABOUTME: Provides WithSessionID/SessionIDFromContext for handlers behind the cookie middleware

package auth

import (
	"context"
	"net/http"
)

// sessionIDKey is the key type for storing the session ID in context.Context.
type sessionIDKey struct{}

// WithSessionID returns a new context carrying sessionID.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

// SessionIDFromContext returns the session ID stored by WithSessionID.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey{}).(string)
	return id, ok && id != ""
}

// Middleware resolves the cookie's session ID and stores it in the request
// context. Requests without a valid cookie pass through unchanged.
func (c *SessionCookie) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := c.Read(r); err == nil {
			r = r.WithContext(WithSessionID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
