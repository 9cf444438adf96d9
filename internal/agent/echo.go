// ABOUTME: Offline agent backend that echoes prompts as markdown with a synthetic trace.
// ABOUTME: Lets the chat surfaces run without AWS credentials.

package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/alphabot/internal/trace"
)

// EchoInvoker answers every prompt locally.
type EchoInvoker struct {
	// ChunkSize splits the reply into chunks of this many bytes (default 16).
	ChunkSize int
}

// Invoke implements Invoker.
func (e *EchoInvoker) Invoke(ctx context.Context, req *InvokeRequest) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := e.ChunkSize
	if size <= 0 {
		size = 16
	}

	events := echoTrace(req)
	reply := []byte(echoReply(req.Prompt))
	for len(reply) > 0 {
		n := min(size, len(reply))
		events = append(events, ContentEvent(reply[:n]))
		reply = reply[n:]
	}
	events = append(events, TraceEvent(&trace.Event{
		SessionID: req.SessionID,
		Trace:     &trace.Wrapper{PostProcessing: &trace.Phase{}},
	}))

	return NewSliceStream(events, nil), nil
}

func echoReply(input string) string {
	lower := strings.ToLower(input)
	if strings.Contains(lower, "markdown") || strings.Contains(lower, "bullet") || strings.Contains(lower, "list") {
		return "Here is a **markdown** response:\n\n- First item\n- Second item with `code`\n- Third item\n\n> This is a blockquote.\n"
	}
	return fmt.Sprintf("Echo: **%s**\n\nI received your message and am responding with some *formatted* text.", input)
}

// echoTrace mimics the trace sequence of a knowledge base backed agent.
func echoTrace(req *InvokeRequest) []Event {
	str := func(s string) *string { return &s }
	orch := func(o *trace.Orchestration) Event {
		return TraceEvent(&trace.Event{
			SessionID: req.SessionID,
			Trace:     &trace.Wrapper{Orchestration: o},
		})
	}

	return []Event{
		TraceEvent(&trace.Event{
			SessionID: req.SessionID,
			Trace:     &trace.Wrapper{PreProcessing: &trace.Phase{}},
		}),
		orch(&trace.Orchestration{
			ModelInvocationInput: &trace.ModelInvocationInput{Type: str(trace.PromptTypeOrchestration)},
		}),
		orch(&trace.Orchestration{
			Rationale: &trace.Rationale{Text: str("The user sent a message; echo it back.")},
		}),
		orch(&trace.Orchestration{
			InvocationInput: &trace.InvocationInput{
				InvocationType:           str(trace.InvocationTypeKnowledgeBase),
				KnowledgeBaseLookupInput: &trace.KnowledgeBaseLookupInput{Text: str(req.Prompt)},
			},
		}),
		orch(&trace.Orchestration{
			Observation: &trace.Observation{Type: str(trace.ObservationTypeFinish)},
		}),
	}
}
