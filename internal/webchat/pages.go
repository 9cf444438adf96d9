// ABOUTME: Browser handlers: chat page, prompt form, trace toggle, new chat and stylesheet
// ABOUTME: Form posts follow Post/Redirect/Get, with a per-form nonce to drop resubmits

package webchat

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/2389/alphabot/internal/auth"
	"github.com/2389/alphabot/internal/conversation"
	"github.com/2389/alphabot/internal/session"
)

// handleIndex renders the chat page for the cookie's session
func (c *Chat) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, err := c.browserSession(w, r)
	if err != nil {
		c.logger.Error("failed to set session cookie", "error", err)
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}

	showTrace := sess.ShowTrace()
	data := pageData{
		Title:     c.title,
		Heading:   c.heading,
		SessionID: sess.ID,
		ShowTrace: showTrace,
		Busy:      sess.Busy(),
		Nonce:     uuid.New().String(),
		Messages:  c.messageViews(sess.Messages(), showTrace),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := c.page.Execute(w, data); err != nil {
		c.logger.Error("failed to render chat page", "error", err)
	}
}

// handleSend runs the submitted prompt and redirects back to the page.
// The request blocks until the agent answers.
func (c *Chat) handleSend(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	sess, err := c.browserSession(w, r)
	if err != nil {
		c.logger.Error("failed to set session cookie", "error", err)
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}

	if nonce := r.FormValue("nonce"); nonce != "" && c.nonces.Seen(sess.ID, nonce) {
		c.metrics.DuplicateSubmit()
		c.logger.Debug("dropped duplicate form submit", "session_id", sess.ID)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	_, err = c.service.Ask(r.Context(), sess, r.FormValue("prompt"))
	switch {
	case err == nil:
	case errors.Is(err, conversation.ErrEmptyPrompt):
	case errors.Is(err, session.ErrBusy):
		// The page shows the busy notice until the running request ends.
	default:
		c.logger.Error("failed to send prompt", "session_id", sess.ID, "error", err)
		http.Error(w, "Failed to send prompt", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleToggleTrace flips trace display for the cookie's session
func (c *Chat) handleToggleTrace(w http.ResponseWriter, r *http.Request) {
	sess, err := c.browserSession(w, r)
	if err != nil {
		c.logger.Error("failed to set session cookie", "error", err)
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}

	show := sess.ToggleTrace()
	c.logger.Debug("trace display toggled", "session_id", sess.ID, "show_trace", show)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleNewChat forgets the cookie's session so the next page load starts a
// fresh one. A session with a prompt still running is left to idle expiry.
func (c *Chat) handleNewChat(w http.ResponseWriter, r *http.Request) {
	if id, ok := auth.SessionIDFromContext(r.Context()); ok {
		if sess, found := c.hub.Get(id); found && !sess.Busy() {
			c.hub.Remove(id)
			c.metrics.SetSessions(c.hub.Len())
		}
		c.logger.Debug("browser session ended", "session_id", id)
	}

	c.cookie.Clear(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (c *Chat) handleStyle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	http.ServeFileFS(w, r, staticFS, "static/style.css")
}
