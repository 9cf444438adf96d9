// Package agent invokes the remote conversational agent and aggregates its output.
//
// # Overview
//
// One user prompt maps to one invocation. The Invoker returns a Stream of
// Events, each either a chunk of answer bytes or a trace payload:
//
//	stream, err := invoker.Invoke(ctx, &agent.InvokeRequest{Prompt: p, SessionID: id})
//	answer, traces, err := agent.Aggregate(stream)
//
// Invoke combines both calls and returns a Result value instead of an error.
//
// # Aggregation
//
// Aggregate concatenates content bytes in arrival order and decodes the whole
// buffer once, replacing invalid UTF-8 with U+FFFD. Every "$" in the decoded
// answer is escaped as "\$". Trace payloads are collected in arrival order.
// If the stream ends with an error, partial text and traces are discarded.
//
// # Backends
//
//   - BedrockInvoker: Amazon Bedrock Agents via aws-sdk-go-v2
//   - EchoInvoker: local echo with a synthetic trace, for development
//
// # Thread Safety
//
// Invokers hold no per-call state and may be shared. A Stream belongs to a
// single consumer.
package agent
