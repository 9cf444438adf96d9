// ABOUTME: Tests for the dedupe cache used to drop duplicate form submissions.
// ABOUTME: Validates TTL expiration, size limits, eviction order, and concurrency safety.

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, ttl time.Duration, maxSize int) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(ttl, maxSize)
	c.mu.Lock()
	c.now = clock.now
	c.mu.Unlock()
	t.Cleanup(c.Close)
	return c, clock
}

// has reports whether key is live without remembering it.
func (c *Cache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(key)
}

func TestCache_CheckAndMark(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)

	assert.False(t, c.CheckAndMark("a"))
	assert.True(t, c.CheckAndMark("a"))
	assert.True(t, c.has("a"))
	assert.False(t, c.has("b"))
}

func TestCache_Seen(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 10)

	assert.False(t, c.Seen("s1", "nonce-1"))
	assert.True(t, c.Seen("s1", "nonce-1"))
	assert.False(t, c.Seen("s2", "nonce-1"), "nonces are scoped to a session")
}

func TestCache_Expiry(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)

	c.CheckAndMark("a")
	clock.advance(30 * time.Second)
	assert.True(t, c.has("a"))

	clock.advance(31 * time.Second)
	assert.False(t, c.has("a"))
	assert.False(t, c.CheckAndMark("a"), "an expired key counts as new")
	assert.True(t, c.has("a"))
}

func TestCache_RepeatDoesNotRefresh(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)

	c.CheckAndMark("a")
	clock.advance(45 * time.Second)
	assert.True(t, c.CheckAndMark("a"))
	clock.advance(45 * time.Second)

	assert.False(t, c.has("a"))
}

func TestCache_EvictsOldestWhenFull(t *testing.T) {
	c, clock := newTestCache(t, time.Hour, 3)

	for _, k := range []string{"a", "b", "c"} {
		c.CheckAndMark(k)
		clock.advance(time.Second)
	}
	assert.True(t, c.CheckAndMark("a"), "a repeat leaves a oldest")
	c.CheckAndMark("d")

	assert.Equal(t, 3, c.seen.Len())
	assert.False(t, c.has("a"))
	assert.True(t, c.has("b"))
	assert.True(t, c.has("c"))
	assert.True(t, c.has("d"))
}

func TestCache_ExpireSweep(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 10)

	c.CheckAndMark("old")
	clock.advance(50 * time.Second)
	c.CheckAndMark("new")
	clock.advance(20 * time.Second)

	c.expire()

	assert.Equal(t, 1, c.seen.Len())
	assert.True(t, c.has("new"))
}

func TestCache_BackgroundExpiry(t *testing.T) {
	c := New(20*time.Millisecond, 10)
	defer c.Close()

	c.Seen("s1", "nonce-1")
	assert.Eventually(t, func() bool { return c.seen.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCache_ZeroMaxSize(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 0)

	c.CheckAndMark("a")
	c.CheckAndMark("b")
	assert.Equal(t, 1, c.seen.Len())
	assert.True(t, c.has("b"))
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := New(time.Minute, 10)
	assert.NotPanics(t, func() {
		c.Close()
		c.Close()
	})
}

func TestCache_ConcurrentCheckAndMark(t *testing.T) {
	c := New(time.Minute, 1000)
	defer c.Close()

	var firsts atomic.Int32
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.CheckAndMark("same") {
				firsts.Add(1)
			}
			c.Seen("s", fmt.Sprintf("nonce-%d", i))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), firsts.Load())
	assert.Equal(t, 101, c.seen.Len())
}
