// Package trace models agent trace payloads and flattens them into display steps.
//
// # Overview
//
// A trace event describes what the remote agent did internally while producing
// an answer. Every section is optional: a single event usually carries only one
// of them.
//
//	trace
//	├── preProcessingTrace
//	├── orchestrationTrace
//	│   ├── modelInvocationInput  (type)
//	│   ├── rationale             (text)
//	│   ├── invocationInput       (invocationType, knowledgeBaseLookupInput.text, actionGroupInvocationInput.apiPath)
//	│   └── observation           (type)
//	└── postProcessingTrace
//
// # Normalization
//
// Normalize walks the sections in a fixed order and emits one Step per
// recognized field:
//
//  1. pre-processing
//  2. orchestration: model invocation input, rationale, invocation input, observation
//  3. post-processing
//
// The orchestration checks are independent. Any subset may match within one
// event. Unknown tag values and missing fields produce no step; nothing in this
// package panics or returns an error for an odd shape.
//
// # Decoding
//
// Events arrive either as SDK values (converted by the agent package) or as
// JSON. Parse and FromMap accept the JSON form and only keep fields whose
// value has the expected type:
//
//	ev, err := trace.Parse(raw)
//	steps := trace.Normalize(ev)
package trace
