// Package webchat serves the alphabot chat page and its JSON/SSE API.
//
// # Browser Routes
//
//	GET  /                   chat page for the cookie's session
//	POST /send               submit a prompt (form: prompt, nonce), then 303 to /
//	POST /trace              toggle "Show Agent Traces", then 303 to /
//	GET  /static/style.css   page stylesheet
//
// The browser's session ID travels in a signed cookie (see package auth). A
// missing, forged or expired cookie starts a new session. Each rendered form
// carries a nonce; a resubmitted nonce is redirected without invoking the
// agent again.
//
// Assistant answers are rendered as markdown with goldmark. Raw HTML in an
// answer is dropped. When trace display is on, each answer gets a
// "View Processing Steps" section listing numbered steps.
//
// # API Routes
//
//	POST /api/send                    {"session_id"?, "content"} -> SSE
//	GET  /api/sessions/{id}           message log as JSON
//	POST /api/sessions/{id}/trace     {"show_trace"?} sets or toggles
//	GET  /api/sessions/{id}/events    SSE of every message appended to the session
//
// POST /api/send emits, in order:
//
//	event: started   {"session_id": "..."}
//	event: answer    {"message_id": "...", "text": "..."}
//	event: step      {"index": 1, "description": "...", "details": "..." | null}
//	event: done      {"steps": N}
//
// A session that already has a request in flight gets 409 Conflict. Agent
// failures are not HTTP errors: the answer text is the error message.
package webchat
