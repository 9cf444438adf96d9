// ABOUTME: Drains an invocation stream into the final answer text and raw trace list.
// ABOUTME: Partial output is discarded when the stream fails.

package agent

import (
	"bytes"
	"context"
	"strings"

	"github.com/2389/alphabot/internal/trace"
)

// EscapeDollars escapes every "$" so markdown renderers do not start math mode.
func EscapeDollars(s string) string {
	return strings.ReplaceAll(s, "$", `\$`)
}

// UnescapeDollars reverses EscapeDollars for plain-text output.
func UnescapeDollars(s string) string {
	return strings.ReplaceAll(s, `\$`, "$")
}

// decodeAnswer decodes the concatenated chunk bytes as UTF-8, replacing
// invalid sequences with U+FFFD, and escapes dollar signs.
func decodeAnswer(b []byte) string {
	return EscapeDollars(strings.ToValidUTF8(string(b), "\uFFFD"))
}

// Aggregate consumes stream until it ends. Content bytes are concatenated in
// arrival order and decoded once at the end, so a multi-byte character split
// across chunks survives. On a stream error it returns ("", nil, err).
func Aggregate(stream Stream) (string, []*trace.Event, error) {
	var (
		buf    bytes.Buffer
		traces []*trace.Event
	)

	for ev := range stream.Events() {
		switch ev.Kind {
		case EventContent:
			buf.Write(ev.Bytes)
		case EventTrace:
			if ev.Trace != nil {
				traces = append(traces, ev.Trace)
			}
		}
	}

	if err := stream.Err(); err != nil {
		return "", nil, err
	}

	return decodeAnswer(buf.Bytes()), traces, nil
}

// Invoke runs one invocation through inv and aggregates its stream. Setup
// and stream errors are both reported in Result.Err, unwrapped, so callers
// can surface err.Error() verbatim.
func Invoke(ctx context.Context, inv Invoker, req *InvokeRequest) Result {
	stream, err := inv.Invoke(ctx, req)
	if err != nil {
		return Result{Err: err}
	}
	defer func() { _ = stream.Close() }()

	answer, traces, err := Aggregate(stream)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Answer: answer, Traces: traces}
}
