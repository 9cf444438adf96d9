// ABOUTME: Tests for the JSON and SSE chat API
// ABOUTME: Covers /api/send streaming, session lookup, trace settings and the live event stream

package webchat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/alphabot/internal/agent"
	"github.com/2389/alphabot/internal/session"
)

type sseEvent struct {
	Name string
	Data string
}

func parseSSE(body string) []sseEvent {
	var events []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.Name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.Data = strings.TrimPrefix(line, "data: ")
			}
		}
		if ev.Name != "" {
			events = append(events, ev)
		}
	}
	return events
}

func (tc *testChat) postJSON(path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	tc.mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp["error"]
}

func TestAPISend_NewSession(t *testing.T) {
	tc := newTestChat(t, &agent.EchoInvoker{})

	rec := tc.postJSON("/api/send", SendRequest{Content: "hello"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(rec.Body.String())
	require.Len(t, events, 9) // started, answer, 6 steps, done

	assert.Equal(t, "started", events[0].Name)
	var started map[string]string
	require.NoError(t, json.Unmarshal([]byte(events[0].Data), &started))
	sess, ok := tc.hub.Get(started["session_id"])
	require.True(t, ok)

	assert.Equal(t, "answer", events[1].Name)
	var answer map[string]string
	require.NoError(t, json.Unmarshal([]byte(events[1].Data), &answer))
	assert.True(t, strings.HasPrefix(answer["text"], "Echo: **hello**"))
	assert.Equal(t, sess.Messages()[1].ID, answer["message_id"])

	var first StepEvent
	require.NoError(t, json.Unmarshal([]byte(events[2].Data), &first))
	assert.Equal(t, "step", events[2].Name)
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, "Pre-processing", first.Description)
	require.NotNil(t, first.Details)
	assert.Equal(t, "Contextualizing and categorizing inputs", *first.Details)

	var finish StepEvent
	require.NoError(t, json.Unmarshal([]byte(events[6].Data), &finish))
	assert.Equal(t, "Generating Final Response", finish.Description)
	assert.Nil(t, finish.Details)
	assert.NotContains(t, events[6].Data, "details", "absent details are omitted, not null")

	assert.Equal(t, "done", events[8].Name)
	assert.JSONEq(t, `{"steps": 6}`, events[8].Data)
}

func TestAPISend_ExistingSession(t *testing.T) {
	tc := newTestChat(t, &agent.EchoInvoker{})
	sess := tc.hub.Create()

	rec := tc.postJSON("/api/send", SendRequest{SessionID: sess.ID, Content: "again"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, tc.hub.Len())
	assert.Equal(t, 2, sess.Len())
}

func TestAPISend_InvocationError(t *testing.T) {
	tc := newTestChat(t, &scriptedInvoker{setupErr: assert.AnError})

	rec := tc.postJSON("/api/send", SendRequest{Content: "hello"})

	events := parseSSE(rec.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, "answer", events[1].Name)
	assert.Contains(t, events[1].Data, assert.AnError.Error())
	assert.JSONEq(t, `{"steps": 0}`, events[2].Data)
}

func TestAPISend_Errors(t *testing.T) {
	tc := newTestChat(t, &agent.EchoInvoker{})

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/send", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		tc.mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid JSON body", decodeError(t, rec))
	})

	t.Run("blank content", func(t *testing.T) {
		rec := tc.postJSON("/api/send", SendRequest{Content: "  "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "content is required", decodeError(t, rec))
	})

	t.Run("unknown session", func(t *testing.T) {
		rec := tc.postJSON("/api/send", SendRequest{SessionID: "zzzzz-zz", Content: "hi"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, 0, tc.hub.Len(), "unknown IDs are not adopted")
	})

	t.Run("busy session", func(t *testing.T) {
		sess := tc.hub.Create()
		require.NoError(t, sess.Begin())
		defer sess.End()

		rec := tc.postJSON("/api/send", SendRequest{SessionID: sess.ID, Content: "hi"})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, session.ErrBusy.Error(), decodeError(t, rec))
		assert.Equal(t, 0, sess.Len())
	})
}

func TestAPISession(t *testing.T) {
	tc := newTestChat(t, &agent.EchoInvoker{})
	sess := tc.hub.Create()
	tc.postJSON("/api/send", SendRequest{SessionID: sess.ID, Content: "hello"})

	rec := tc.get("/api/sessions/" + sess.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, sess.ID, resp.SessionID)
	assert.False(t, resp.ShowTrace)
	assert.False(t, resp.Busy)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, session.RoleUser, resp.Messages[0].Role)
	assert.Len(t, resp.Messages[1].Trace, 6)

	rec = tc.get("/api/sessions/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPITrace(t *testing.T) {
	tc := newTestChat(t, &agent.EchoInvoker{})
	sess := tc.hub.Create()

	rec := tc.postJSON("/api/sessions/"+sess.ID+"/trace", map[string]bool{"show_trace": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session_id": "`+sess.ID+`", "show_trace": true}`, rec.Body.String())
	assert.True(t, sess.ShowTrace())

	// No body toggles
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sess.ID+"/trace", nil)
	rec = httptest.NewRecorder()
	tc.mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session_id": "`+sess.ID+`", "show_trace": false}`, rec.Body.String())

	rec = tc.postJSON("/api/sessions/missing/trace", map[string]bool{"show_trace": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIEvents_StreamsAppendedMessages(t *testing.T) {
	tc := newTestChat(t, &agent.EchoInvoker{})
	sess := tc.hub.Create()

	srv := httptest.NewServer(tc.mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/sessions/"+sess.ID+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	next := func(prefix string) string {
		t.Helper()
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream closed while waiting for %q", prefix)
				if strings.HasPrefix(line, prefix) {
					return strings.TrimPrefix(line, prefix)
				}
			case <-ctx.Done():
				t.Fatalf("timed out waiting for %q", prefix)
			}
		}
	}

	assert.Equal(t, "connected", next("event: "))
	require.Eventually(t, func() bool { return tc.broadcaster.Subscribers(sess.ID) == 1 }, time.Second, 10*time.Millisecond)

	_, err = tc.chat.service.Ask(context.Background(), sess, "hello")
	require.NoError(t, err)

	var user, reply session.ChatMessage
	assert.Equal(t, "message", next("event: "))
	require.NoError(t, json.Unmarshal([]byte(next("data: ")), &user))
	assert.Equal(t, "message", next("event: "))
	require.NoError(t, json.Unmarshal([]byte(next("data: ")), &reply))

	assert.Equal(t, session.RoleUser, user.Role)
	assert.Equal(t, "hello", user.Content)
	assert.Equal(t, session.RoleAssistant, reply.Role)
	assert.Len(t, reply.Trace, 6)
}

func TestAPIEvents_UnknownSession(t *testing.T) {
	tc := newTestChat(t, &agent.EchoInvoker{})

	rec := tc.get("/api/sessions/missing/events")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParseSSE(t *testing.T) {
	events := parseSSE("event: a\ndata: {}\n\n: heartbeat\n\nevent: b\ndata: 1\n\n")
	assert.Equal(t, []sseEvent{{"a", "{}"}, {"b", "1"}}, events)
}
