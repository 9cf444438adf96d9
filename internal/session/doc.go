// Package session holds in-memory chat sessions.
//
// A Session is the per-conversation state: the message log, the trace
// display toggle, and an in-flight flag that limits each session to one agent
// request at a time (Begin returns ErrBusy otherwise). The Hub maps session
// IDs to sessions and expires idle ones.
//
// Session IDs are short tokens ("3f1a9-0c") passed to the agent as its
// session identifier.
package session
