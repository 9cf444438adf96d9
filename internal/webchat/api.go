// ABOUTME: JSON and SSE API for remote chat clients such as alphabot-tui
// ABOUTME: POST /api/send streams started, answer, step and done events for one prompt

package webchat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/2389/alphabot/internal/session"
	"github.com/2389/alphabot/internal/trace"
)

// SendRequest is the JSON request body for POST /api/send.
type SendRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content"`
}

// TraceRequest is the JSON request body for POST /api/sessions/{id}/trace.
// A missing show_trace toggles the current setting.
type TraceRequest struct {
	ShowTrace *bool `json:"show_trace"`
}

// SessionResponse is the JSON response for GET /api/sessions/{id}.
type SessionResponse struct {
	SessionID string                `json:"session_id"`
	ShowTrace bool                  `json:"show_trace"`
	Busy      bool                  `json:"busy"`
	CreatedAt string                `json:"created_at"`
	Messages  []session.ChatMessage `json:"messages"`
}

// StepEvent is the data of one SSE step event.
type StepEvent struct {
	Index       int     `json:"index"`
	Description string  `json:"description"`
	Details     *string `json:"details,omitempty"`
}

// TraceResponse is the JSON response for POST /api/sessions/{id}/trace.
type TraceResponse struct {
	SessionID string `json:"session_id"`
	ShowTrace bool   `json:"show_trace"`
}

// handleAPISend runs one prompt and streams the outcome as SSE.
// An empty session_id starts a new session; an unknown one is a 404.
func (c *Chat) handleAPISend(w http.ResponseWriter, r *http.Request) {
	req, err := parseSendRequest(r.Body)
	if err != nil {
		c.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var sess *session.Session
	if req.SessionID == "" {
		sess = c.hub.Create()
		c.metrics.SetSessions(c.hub.Len())
	} else {
		var ok bool
		if sess, ok = c.hub.Get(req.SessionID); !ok {
			c.sendJSONError(w, http.StatusNotFound, "session not found")
			return
		}
	}

	if sess.Busy() {
		c.metrics.BusyRejected()
		c.sendJSONError(w, http.StatusConflict, session.ErrBusy.Error())
		return
	}

	// Check streaming support before sending (fail fast)
	flusher, ok := w.(http.Flusher)
	if !ok {
		c.logger.Error("streaming not supported")
		c.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	setSSEHeaders(w)
	c.writeSSEEvent(w, "started", map[string]string{"session_id": sess.ID})
	flusher.Flush()

	type result struct {
		reply *session.ChatMessage
		err   error
	}
	done := make(chan result, 1)
	go func() {
		reply, err := c.service.Ask(r.Context(), sess, req.Content)
		done <- result{reply, err}
	}()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			// The invocation carries on detached; its reply still lands in the log.
			return

		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()

		case res := <-done:
			if res.err != nil {
				// Another client began a request after the Busy check above.
				c.writeSSEEvent(w, "error", map[string]string{"error": res.err.Error()})
				flusher.Flush()
				return
			}
			c.streamReply(w, res.reply)
			flusher.Flush()
			return
		}
	}
}

// streamReply writes the answer, each step and the closing done event.
func (c *Chat) streamReply(w http.ResponseWriter, reply *session.ChatMessage) {
	c.writeSSEEvent(w, "answer", map[string]string{
		"message_id": reply.ID,
		"text":       reply.Content,
	})
	for i, s := range reply.Trace {
		c.writeSSEEvent(w, "step", stepEvent(i, s))
	}
	c.writeSSEEvent(w, "done", map[string]int{"steps": len(reply.Trace)})
}

func stepEvent(i int, s trace.Step) StepEvent {
	return StepEvent{Index: i + 1, Description: s.Description, Details: s.Details}
}

// handleAPISession returns a session's message log
func (c *Chat) handleAPISession(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.hub.Get(r.PathValue("id"))
	if !ok {
		c.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	c.writeJSON(w, SessionResponse{
		SessionID: sess.ID,
		ShowTrace: sess.ShowTrace(),
		Busy:      sess.Busy(),
		CreatedAt: sess.CreatedAt.UTC().Format(time.RFC3339),
		Messages:  sess.Messages(),
	})
}

// handleAPITrace sets or toggles a session's trace display
func (c *Chat) handleAPITrace(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.hub.Get(r.PathValue("id"))
	if !ok {
		c.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	var req TraceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		c.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var show bool
	if req.ShowTrace == nil {
		show = sess.ToggleTrace()
	} else {
		show = *req.ShowTrace
		sess.SetShowTrace(show)
	}

	c.writeJSON(w, TraceResponse{SessionID: sess.ID, ShowTrace: show})
}

// handleAPIEvents streams every message appended to a session, from any
// client, until the caller disconnects.
func (c *Chat) handleAPIEvents(w http.ResponseWriter, r *http.Request) {
	if c.broadcaster == nil {
		c.sendJSONError(w, http.StatusNotImplemented, "event streaming disabled")
		return
	}

	sess, ok := c.hub.Get(r.PathValue("id"))
	if !ok {
		c.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		c.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	msgs, _ := c.broadcaster.Subscribe(r.Context(), sess.ID)

	setSSEHeaders(w)
	c.writeSSEEvent(w, "connected", map[string]string{"session_id": sess.ID})
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()

		case msg, ok := <-msgs:
			if !ok {
				return
			}
			c.writeSSEEvent(w, "message", msg)
			flusher.Flush()
		}
	}
}

// parseSendRequest parses and validates a SendRequest.
func parseSendRequest(r io.Reader) (*SendRequest, error) {
	var req SendRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}

	if strings.TrimSpace(req.Content) == "" {
		return nil, errors.New("content is required")
	}

	return &req, nil
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// writeSSEEvent writes a single SSE event to the response writer.
func (c *Chat) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		c.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

func (c *Chat) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		c.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (c *Chat) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
