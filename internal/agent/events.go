// ABOUTME: Event, stream and invoker types shared by every agent backend.
// ABOUTME: A stream yields content chunks and trace payloads in arrival order.

package agent

import (
	"context"

	"github.com/2389/alphabot/internal/trace"
)

// EventKind distinguishes the two payloads an agent stream can carry.
type EventKind int

const (
	// EventContent carries a chunk of answer bytes.
	EventContent EventKind = iota
	// EventTrace carries one trace payload.
	EventTrace
)

func (k EventKind) String() string {
	switch k {
	case EventContent:
		return "content"
	case EventTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// Event is one item received from an invocation stream. Exactly one of
// Bytes or Trace is meaningful, selected by Kind.
type Event struct {
	Kind  EventKind
	Bytes []byte
	Trace *trace.Event
}

// ContentEvent wraps a chunk of answer bytes.
func ContentEvent(b []byte) Event {
	return Event{Kind: EventContent, Bytes: b}
}

// TraceEvent wraps one trace payload.
func TraceEvent(ev *trace.Event) Event {
	return Event{Kind: EventTrace, Trace: ev}
}

// Stream is the event sequence of one invocation. Events is closed when the
// stream ends; Err then reports the terminal error, if any.
type Stream interface {
	Events() <-chan Event
	Err() error
	Close() error
}

// InvokeRequest is a single prompt sent to the agent.
type InvokeRequest struct {
	Prompt    string
	SessionID string
}

// Invoker starts one remote agent invocation per call.
type Invoker interface {
	Invoke(ctx context.Context, req *InvokeRequest) (Stream, error)
}

// Result is the outcome of one invocation. Err is set when the invocation
// or its stream failed, in which case Answer and Traces are empty.
type Result struct {
	Answer string
	Traces []*trace.Event
	Err    error
}

// OK reports whether the invocation succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}
