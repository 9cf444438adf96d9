// ABOUTME: TTL and size bounded set of recently seen keys.
// ABOUTME: Used by the web chat to drop browser resubmissions of the same prompt form.

package dedupe

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache remembers keys for ttl, holding at most maxSize of them. When full,
// the oldest key is forgotten first.
type Cache struct {
	mu   sync.Mutex // makes check-then-mark atomic; the LRU locks only per call
	seen *lru.Cache[string, time.Time]
	ttl  time.Duration
	now  func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a cache and starts its background expiry loop.
func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	// lru.New only fails for a non-positive size.
	seen, _ := lru.New[string, time.Time](maxSize)

	c := &Cache{
		seen: seen,
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}
	go c.expireLoop(expiryInterval(ttl))
	return c
}

// expiryInterval sweeps a few times per TTL, at most once a minute.
func expiryInterval(ttl time.Duration) time.Duration {
	interval := min(ttl/2, time.Minute)
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

// CheckAndMark reports whether key was already seen and, if not, remembers
// it. The check and the mark are one atomic step. A repeat does not extend
// the key's TTL.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.liveLocked(key) {
		return true
	}
	c.seen.Add(key, c.now())
	return false
}

// Seen is CheckAndMark for a form nonce scoped to a session.
func (c *Cache) Seen(sessionID, nonce string) bool {
	return c.CheckAndMark(sessionID + "|" + nonce)
}

// liveLocked must be called with mu held. Peek leaves recency untouched.
func (c *Cache) liveLocked(key string) bool {
	seenAt, ok := c.seen.Peek(key)
	return ok && c.now().Sub(seenAt) < c.ttl
}

// expire drops every key older than the TTL. Keys come back oldest first, so
// it stops at the first live one.
func (c *Cache) expire() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, key := range c.seen.Keys() {
		seenAt, ok := c.seen.Peek(key)
		if ok && now.Sub(seenAt) < c.ttl {
			return
		}
		c.seen.Remove(key)
	}
}

func (c *Cache) expireLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.expire()
		case <-c.stop:
			return
		}
	}
}

// Close stops the expiry loop. It is safe to call multiple times.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}
