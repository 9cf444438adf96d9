// ABOUTME: A chat session: an append-only message log plus per-session display state.
// ABOUTME: At most one agent request may be in flight per session.

package session

import (
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/alphabot/internal/trace"
)

// ErrBusy indicates the session already has a request in flight.
var ErrBusy = errors.New("session has a request in progress")

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry in a session's log. Messages are never modified
// after they are appended.
type ChatMessage struct {
	ID        string       `json:"id"`
	Role      Role         `json:"role"`
	Content   string       `json:"content"`
	Trace     []trace.Step `json:"trace,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewMessage creates a message with a fresh ID and the current time.
func NewMessage(role Role, content string, steps []trace.Step) ChatMessage {
	return ChatMessage{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Trace:     steps,
		CreatedAt: time.Now(),
	}
}

// NewID returns a short session token such as "3f1a9-0c". The first hex
// digits of a random UUID are interleaved as d0 c0 d1 d2 c1 "-" d3 c2.
func NewID() string {
	u := uuid.New()
	h := hex.EncodeToString(u[:])
	digits, chars := h[:4], h[4:7]

	b := []byte{
		digits[0], chars[0], digits[1], digits[2], chars[1],
		'-',
		digits[3], chars[2],
	}
	return string(b)
}

// Session holds the conversation state for one browser or client.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.RWMutex
	messages  []ChatMessage
	showTrace bool
	busy      bool
	lastUsed  time.Time
}

// New creates an empty session.
func New(id string, showTrace bool) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		showTrace: showTrace,
		lastUsed:  now,
	}
}

// Append adds msg to the end of the log.
func (s *Session) Append(msg ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	s.lastUsed = time.Now()
}

// Messages returns a snapshot of the log.
func (s *Session) Messages() []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages in the log.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *Session) ShowTrace() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.showTrace
}

func (s *Session) SetShowTrace(show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showTrace = show
}

// ToggleTrace flips trace display and returns the new value.
func (s *Session) ToggleTrace() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showTrace = !s.showTrace
	return s.showTrace
}

// Begin marks a request as in flight. It returns ErrBusy if one already is.
// Every successful Begin must be paired with End.
func (s *Session) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	s.lastUsed = time.Now()
	return nil
}

// End clears the in-flight mark.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.lastUsed = time.Now()
}

// Busy reports whether a request is in flight.
func (s *Session) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// idleSince reports how long the session has been unused at now. Busy
// sessions are never idle.
func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.busy {
		return 0
	}
	return now.Sub(s.lastUsed)
}
