// ABOUTME: In-memory fan-out of chat messages to every client watching a session
// ABOUTME: Lets a second tab or the TUI see messages appended by another client

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/alphabot/internal/session"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Broadcaster provides in-memory pub/sub of appended chat messages, keyed by
// session ID. Slow subscribers lose messages rather than block the publisher.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan session.ChatMessage // sessionID -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan session.ChatMessage),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers for messages appended to sessionID. The subscription
// ends, and the channel closes, when ctx is cancelled or Unsubscribe is called.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionID string) (<-chan session.ChatMessage, string) {
	subID := uuid.New().String()
	ch := make(chan session.ChatMessage, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[sessionID]; !ok {
		b.subscribers[sessionID] = make(map[string]chan session.ChatMessage)
	}
	b.subscribers[sessionID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "session_id", sessionID, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(sessionID, subID)
	}()

	return ch, subID
}

// Publish delivers msg to every subscriber of sessionID without blocking.
func (b *Broadcaster) Publish(sessionID string, msg session.ChatMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// Sends happen under the read lock so Unsubscribe cannot close a channel mid-send.
	for subID, ch := range b.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
			b.logger.Debug("dropped message for slow subscriber",
				"session_id", sessionID,
				"sub_id", subID,
				"message_id", msg.ID)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(sessionID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[sessionID]
	if !ok {
		return
	}
	ch, ok := subs[subID]
	if !ok {
		return
	}

	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, sessionID)
	}

	b.logger.Debug("subscriber removed", "session_id", sessionID, "sub_id", subID)
}

// Subscribers returns the number of subscriptions for sessionID.
func (b *Broadcaster) Subscribers(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[sessionID])
}

// Close closes every subscriber channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sessionID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, sessionID)
	}
}
