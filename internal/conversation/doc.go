// Package conversation runs chat prompts against the agent.
//
// # Overview
//
// The conversation package sits between the chat surfaces (web, API, CLI)
// and the agent package. One call to Service.Ask is one conversational turn:
//
//  1. Trim the prompt; reject it if blank (ErrEmptyPrompt)
//  2. Claim the session (session.ErrBusy if a turn is already running)
//  3. Append the user message
//  4. Invoke the agent and aggregate its stream
//  5. Normalize every trace event into display steps
//  6. Append the assistant message
//  7. Record metrics and a ledger row
//
// # Failure Policy
//
// Agent failures (credentials, network, throttling, a broken stream) do not
// surface as errors. The assistant message carries the error text instead
// and an empty trace, so the chat shows what went wrong in place of an
// answer. The failure is logged at error level and counted.
//
// # Broadcasting
//
// Every appended message is published on the Broadcaster under its session
// ID, so other clients watching the same session see it live:
//
//	ch, subID := broadcaster.Subscribe(ctx, sessionID)
//	for msg := range ch {
//	    ...
//	}
package conversation
