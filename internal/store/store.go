// ABOUTME: Store interface and data types for the invocation ledger
// ABOUTME: Records metadata about each agent call; prompt and answer text are never stored

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Invocation outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Invocation is one agent call made on behalf of a chat session.
type Invocation struct {
	ID          string
	SessionID   string
	AgentID     string
	Backend     string // "bedrock" or "echo"
	StartedAt   time.Time
	Duration    time.Duration
	PromptBytes int
	AnswerBytes int
	TraceEvents int
	Steps       int
	Error       string // empty on success
}

// Outcome returns OutcomeOK or OutcomeError.
func (i *Invocation) Outcome() string {
	if i.Error != "" {
		return OutcomeError
	}
	return OutcomeOK
}

// InvocationFilter narrows ledger queries. Nil fields match everything.
type InvocationFilter struct {
	SessionID *string
	Since     *time.Time
	Until     *time.Time
	Limit     int // 0 means the store default
}

// InvocationStats aggregates ledger rows.
type InvocationStats struct {
	Count            int64
	Failures         int64
	TotalSteps       int64
	TotalAnswerBytes int64
	AvgDuration      time.Duration
	MaxDuration      time.Duration
	Sessions         int64
}

// Recorder accepts invocation records.
type Recorder interface {
	SaveInvocation(ctx context.Context, inv *Invocation) error
}

// Store is the invocation ledger.
type Store interface {
	Recorder
	GetInvocation(ctx context.Context, id string) (*Invocation, error)
	ListInvocations(ctx context.Context, filter InvocationFilter) ([]*Invocation, error)
	GetInvocationStats(ctx context.Context, filter InvocationFilter) (*InvocationStats, error)
	Ping(ctx context.Context) error
	Close() error
}

// defaultListLimit caps ListInvocations when the filter sets no limit.
const defaultListLimit = 100
