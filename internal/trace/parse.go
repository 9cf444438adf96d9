// ABOUTME: Decodes loosely-typed trace payloads (JSON or generic maps) into Event
// ABOUTME: Fields with an unexpected type are treated as absent, never as errors

package trace

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotObject is returned by Parse when the payload is valid JSON but not an object.
var ErrNotObject = errors.New("trace payload is not a JSON object")

// Parse decodes a JSON trace payload. Only malformed JSON or a non-object
// payload is an error. Odd shapes inside the object just drop fields.
func Parse(data []byte) (*Event, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding trace payload: %w", err)
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return FromMap(m), nil
}

// FromMap builds an Event from a generic key-value tree. A section counts as
// present when its key maps to an object. Tag and text fields are kept only
// when they are strings.
func FromMap(m map[string]any) *Event {
	ev := &Event{
		AgentID:      stringValue(m, "agentId"),
		AgentAliasID: stringValue(m, "agentAliasId"),
		AgentVersion: stringValue(m, "agentVersion"),
		SessionID:    stringValue(m, "sessionId"),
	}

	w, ok := object(m, "trace")
	if !ok {
		return ev
	}
	ev.Trace = &Wrapper{}

	if p, ok := object(w, "preProcessingTrace"); ok {
		ev.Trace.PreProcessing = phaseFromMap(p)
	}
	if o, ok := object(w, "orchestrationTrace"); ok {
		ev.Trace.Orchestration = orchestrationFromMap(o)
	}
	if p, ok := object(w, "postProcessingTrace"); ok {
		ev.Trace.PostProcessing = phaseFromMap(p)
	}

	return ev
}

func phaseFromMap(m map[string]any) *Phase {
	phase := &Phase{}
	if in, ok := object(m, "modelInvocationInput"); ok {
		phase.ModelInvocationInput = modelInvocationInputFromMap(in)
	}
	return phase
}

func orchestrationFromMap(m map[string]any) *Orchestration {
	o := &Orchestration{}

	if in, ok := object(m, "modelInvocationInput"); ok {
		o.ModelInvocationInput = modelInvocationInputFromMap(in)
	}

	if r, ok := object(m, "rationale"); ok {
		o.Rationale = &Rationale{Text: stringPtr(r, "text")}
	}

	if in, ok := object(m, "invocationInput"); ok {
		inv := &InvocationInput{InvocationType: stringPtr(in, "invocationType")}
		if kb, ok := object(in, "knowledgeBaseLookupInput"); ok {
			inv.KnowledgeBaseLookupInput = &KnowledgeBaseLookupInput{
				KnowledgeBaseID: stringPtr(kb, "knowledgeBaseId"),
				Text:            stringPtr(kb, "text"),
			}
		}
		if ag, ok := object(in, "actionGroupInvocationInput"); ok {
			inv.ActionGroupInvocationInput = &ActionGroupInvocationInput{
				ActionGroupName: stringPtr(ag, "actionGroupName"),
				APIPath:         stringPtr(ag, "apiPath"),
				Verb:            stringPtr(ag, "verb"),
				Function:        stringPtr(ag, "function"),
			}
		}
		o.InvocationInput = inv
	}

	if obs, ok := object(m, "observation"); ok {
		o.Observation = &Observation{Type: stringPtr(obs, "type")}
	}

	return o
}

func modelInvocationInputFromMap(m map[string]any) *ModelInvocationInput {
	return &ModelInvocationInput{
		Type: stringPtr(m, "type"),
		Text: stringPtr(m, "text"),
	}
}

func object(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key].(map[string]any)
	return v, ok
}

func stringPtr(m map[string]any, key string) *string {
	v, ok := m[key].(string)
	if !ok {
		return nil
	}
	return &v
}

func stringValue(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}
