// ABOUTME: Session cookie handling for the web chat
// ABOUTME: Reads and writes the signed cookie that names the browser's chat session

package auth

import (
	"net/http"
	"time"
)

// DefaultCookieName is used when no cookie name is configured.
const DefaultCookieName = "alphabot_session"

// SessionCookie reads and writes the signed session cookie.
type SessionCookie struct {
	Name   string
	Signer *SessionSigner
	// TTL bounds both the token and the cookie. Zero makes a browser-session cookie.
	TTL time.Duration
	// Secure marks the cookie HTTPS-only.
	Secure bool
}

func (c *SessionCookie) name() string {
	if c.Name == "" {
		return DefaultCookieName
	}
	return c.Name
}

// Read returns the session ID carried by r's cookie. It returns
// http.ErrNoCookie when the cookie is absent and a token error when the
// cookie is present but not valid.
func (c *SessionCookie) Read(r *http.Request) (string, error) {
	cookie, err := r.Cookie(c.name())
	if err != nil {
		return "", err
	}
	return c.Signer.Verify(cookie.Value)
}

// Write sets the cookie for sessionID on w.
func (c *SessionCookie) Write(w http.ResponseWriter, sessionID string) error {
	token, err := c.Signer.Sign(sessionID, c.TTL)
	if err != nil {
		return err
	}

	cookie := &http.Cookie{
		Name:     c.name(),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if c.TTL > 0 {
		cookie.MaxAge = int(c.TTL.Seconds())
	}
	http.SetCookie(w, cookie)
	return nil
}

// Clear removes the cookie.
func (c *SessionCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
