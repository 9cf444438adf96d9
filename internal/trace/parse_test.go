// ABOUTME: Tests for decoding JSON trace payloads and generic maps into Event.
// ABOUTME: Mismatched field types must drop the field rather than fail the decode.

package trace

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Orchestration(t *testing.T) {
	raw := `{
		"agentId": "AGENT1",
		"agentAliasId": "ALIAS1",
		"sessionId": "abcde-fg",
		"trace": {
			"orchestrationTrace": {
				"rationale": {"text": "Need data", "traceId": "t-1"},
				"invocationInput": {
					"invocationType": "KNOWLEDGE_BASE",
					"knowledgeBaseLookupInput": {"knowledgeBaseId": "KB1", "text": "AAPL revenue"}
				}
			}
		}
	}`

	ev, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "AGENT1", ev.AgentID)
	assert.Equal(t, "ALIAS1", ev.AgentAliasID)
	assert.Equal(t, "abcde-fg", ev.SessionID)

	require.NotNil(t, ev.Trace)
	require.NotNil(t, ev.Trace.Orchestration)
	assert.Nil(t, ev.Trace.PreProcessing)

	steps := Normalize(ev)
	require.Len(t, steps, 2)
	assert.Equal(t, "Reasoning", steps[0].Description)
	assert.Equal(t, "Query: AAPL revenue", steps[1].DetailsText())
}

func TestParse_PhasesAndObservation(t *testing.T) {
	raw := `{"trace": {
		"preProcessingTrace": {"modelInvocationInput": {"type": "PRE_PROCESSING", "text": "..."}},
		"postProcessingTrace": {},
		"orchestrationTrace": {"observation": {"type": "FINISH", "finalResponse": {"text": "done"}}}
	}}`

	ev, err := Parse([]byte(raw))
	require.NoError(t, err)

	descs := make([]string, 0)
	for _, s := range Normalize(ev) {
		descs = append(descs, s.Description)
	}
	assert.Equal(t, []string{"Pre-processing", "Generating Final Response", "Post-processing"}, descs)
	assert.Equal(t, "PRE_PROCESSING", *ev.Trace.PreProcessing.ModelInvocationInput.Type)
}

func TestParse_WrongTypesAreDropped(t *testing.T) {
	raw := `{
		"agentId": 42,
		"trace": {
			"preProcessingTrace": null,
			"postProcessingTrace": "yes",
			"orchestrationTrace": {
				"rationale": {"text": 7},
				"invocationInput": {"invocationType": ["KNOWLEDGE_BASE"]},
				"observation": "FINISH",
				"modelInvocationInput": {"type": true}
			}
		}
	}`

	ev, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Empty(t, ev.AgentID)
	require.NotNil(t, ev.Trace)
	assert.Nil(t, ev.Trace.PreProcessing)
	assert.Nil(t, ev.Trace.PostProcessing)

	o := ev.Trace.Orchestration
	require.NotNil(t, o)
	assert.Nil(t, o.Observation)
	require.NotNil(t, o.Rationale)
	assert.Nil(t, o.Rationale.Text)
	require.NotNil(t, o.InvocationInput)
	assert.Nil(t, o.InvocationInput.InvocationType)

	assert.Empty(t, Normalize(ev))
}

func TestParse_TraceNotObject(t *testing.T) {
	ev, err := Parse([]byte(`{"trace": [1, 2, 3]}`))
	require.NoError(t, err)
	assert.Nil(t, ev.Trace)
	assert.Empty(t, Normalize(ev))
}

func TestParse_PresentEmptyQueryIsKept(t *testing.T) {
	raw := `{"trace": {"orchestrationTrace": {"invocationInput": {
		"invocationType": "KNOWLEDGE_BASE",
		"knowledgeBaseLookupInput": {"text": ""}
	}}}}`

	ev, err := Parse([]byte(raw))
	require.NoError(t, err)

	steps := Normalize(ev)
	require.Len(t, steps, 1)
	assert.Equal(t, "Query: ", steps[0].DetailsText())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte(`{not json`))
	require.Error(t, err)

	_, err = Parse([]byte(`["trace"]`))
	assert.True(t, errors.Is(err, ErrNotObject))

	_, err = Parse([]byte(`null`))
	assert.True(t, errors.Is(err, ErrNotObject))
}

func TestFromMap_Empty(t *testing.T) {
	ev := FromMap(map[string]any{})
	require.NotNil(t, ev)
	assert.Nil(t, ev.Trace)

	ev = FromMap(nil)
	require.NotNil(t, ev)
	assert.Nil(t, ev.Trace)
}

func TestFromMap_ActionGroup(t *testing.T) {
	m := map[string]any{
		"trace": map[string]any{
			"orchestrationTrace": map[string]any{
				"invocationInput": map[string]any{
					"invocationType": "ACTION_GROUP",
					"actionGroupInvocationInput": map[string]any{
						"actionGroupName": "quotes",
						"apiPath":         "/quote",
						"verb":            "get",
					},
				},
			},
		},
	}

	ev := FromMap(m)
	ag := ev.Trace.Orchestration.InvocationInput.ActionGroupInvocationInput
	require.NotNil(t, ag)
	assert.Equal(t, "quotes", *ag.ActionGroupName)
	assert.Equal(t, "get", *ag.Verb)
	assert.Nil(t, ag.Function)

	steps := Normalize(ev)
	require.Len(t, steps, 1)
	assert.Equal(t, "API: /quote", steps[0].DetailsText())
}
