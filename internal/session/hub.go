// ABOUTME: Hub tracks live chat sessions by ID and expires idle ones.
// ABOUTME: Sessions live in memory only; a restart starts every conversation over.

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// maxIDAttempts bounds retries when a generated ID collides with a live session.
const maxIDAttempts = 8

// HubOptions configures a Hub.
type HubOptions struct {
	// IdleTimeout removes sessions unused for this long. Zero keeps them forever.
	IdleTimeout time.Duration

	// ShowTrace is the initial trace display setting for new sessions.
	ShowTrace bool

	// OnExpire is called with the remaining count after idle sessions are removed.
	OnExpire func(remaining int)
	Logger   *slog.Logger
}

// Hub owns all live sessions.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     HubOptions
	logger   *slog.Logger
	newID    func() string
	cancel   context.CancelFunc
}

// NewHub creates a hub. When IdleTimeout is set a background loop removes
// idle sessions until Close is called.
func NewHub(opts HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		sessions: make(map[string]*Session),
		opts:     opts,
		logger:   logger.With("component", "sessions"),
		newID:    NewID,
		cancel:   cancel,
	}
	if opts.IdleTimeout > 0 {
		go h.cleanupLoop(ctx)
	}
	return h
}

// Create starts a new session with a fresh ID.
func (h *Hub) Create() *Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	var id string
	for range maxIDAttempts {
		id = h.newID()
		if _, taken := h.sessions[id]; !taken {
			break
		}
	}
	// The short ID space is small; fall back to a longer ID if every attempt collided.
	if _, taken := h.sessions[id]; taken {
		id = h.newID() + "-" + h.newID()
	}

	s := New(id, h.opts.ShowTrace)
	h.sessions[id] = s
	h.logger.Info("Session ID: "+id, "session_id", id, "total_sessions", len(h.sessions))
	return s
}

// Get returns the session with id and marks it as used.
func (h *Hub) Get(id string) (*Session, bool) {
	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()

	if ok {
		s.touch()
	}
	return s, ok
}

// GetOrCreate returns the session with id, or a new session when id is
// empty or unknown. created reports which case applied. Unknown IDs are
// never adopted: clients only ever hold IDs this hub issued.
func (h *Hub) GetOrCreate(id string) (s *Session, created bool) {
	if id != "" {
		if s, ok := h.Get(id); ok {
			return s, false
		}
	}
	return h.Create(), true
}

// Remove drops the session with id.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

// Len returns the number of live sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// cleanupLoop periodically removes idle sessions.
func (h *Hub) cleanupLoop(ctx context.Context) {
	interval := min(time.Minute, h.opts.IdleTimeout/2)
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.removeIdle(now)
		}
	}
}

// removeIdle drops sessions idle longer than IdleTimeout and returns how many.
func (h *Hub) removeIdle(now time.Time) int {
	if h.opts.IdleTimeout <= 0 {
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for id, s := range h.sessions {
		if s.idleSince(now) > h.opts.IdleTimeout {
			delete(h.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		h.logger.Debug("expired idle sessions", "removed", removed, "remaining", len(h.sessions))
		if h.opts.OnExpire != nil {
			h.opts.OnExpire(len(h.sessions))
		}
	}
	return removed
}

// Close stops the cleanup loop and drops all sessions.
func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.sessions)
}
