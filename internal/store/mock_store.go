// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu          sync.RWMutex
	invocations map[string]*Invocation // keyed by invocation ID

	// SaveErr, when set, is returned by SaveInvocation.
	SaveErr error
	// PingErr, when set, is returned by Ping.
	PingErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		invocations: make(map[string]*Invocation),
	}
}

// SaveInvocation stores a copy of inv.
func (m *MockStore) SaveInvocation(ctx context.Context, inv *Invocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}

	// Make a copy to avoid external modification
	c := *inv
	m.invocations[c.ID] = &c
	return nil
}

// GetInvocation retrieves an invocation by ID.
func (m *MockStore) GetInvocation(ctx context.Context, id string) (*Invocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.invocations[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *inv
	return &c, nil
}

// ListInvocations returns matching invocations, newest first.
func (m *MockStore) ListInvocations(ctx context.Context, filter InvocationFilter) ([]*Invocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.matching(filter)
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetInvocationStats aggregates matching invocations.
func (m *MockStore) GetInvocationStats(ctx context.Context, filter InvocationFilter) (*InvocationStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		stats    InvocationStats
		total    time.Duration
		sessions = make(map[string]struct{})
	)
	for _, inv := range m.matching(filter) {
		stats.Count++
		if inv.Error != "" {
			stats.Failures++
		}
		stats.TotalSteps += int64(inv.Steps)
		stats.TotalAnswerBytes += int64(inv.AnswerBytes)
		total += inv.Duration
		stats.MaxDuration = max(stats.MaxDuration, inv.Duration)
		sessions[inv.SessionID] = struct{}{}
	}
	if stats.Count > 0 {
		stats.AvgDuration = total / time.Duration(stats.Count)
	}
	stats.Sessions = int64(len(sessions))
	return &stats, nil
}

// Ping returns PingErr.
func (m *MockStore) Ping(ctx context.Context) error {
	return m.PingErr
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// Invocations returns copies of every stored invocation, oldest first.
func (m *MockStore) Invocations() []*Invocation {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := m.matching(InvocationFilter{})
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// matching returns copies of invocations that pass filter. Must be called with mu held.
func (m *MockStore) matching(filter InvocationFilter) []*Invocation {
	var out []*Invocation
	for _, inv := range m.invocations {
		if filter.SessionID != nil && inv.SessionID != *filter.SessionID {
			continue
		}
		if filter.Since != nil && inv.StartedAt.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && !inv.StartedAt.Before(*filter.Until) {
			continue
		}
		c := *inv
		out = append(out, &c)
	}
	return out
}

// Ensure MockStore implements Store interface.
var _ Store = (*MockStore)(nil)
