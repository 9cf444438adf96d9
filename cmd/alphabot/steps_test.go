// ABOUTME: Tests for the steps command
// ABOUTME: Covers JSON lines, arrays, stdin input and malformed payloads

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/alphabot/internal/trace"
)

const (
	rationaleLine = `{"agentId":"A1","trace":{"orchestrationTrace":{"rationale":{"text":"Need the price"}}}}`
	kbLine        = `{"agentId":"A1","trace":{"orchestrationTrace":{"invocationInput":{"invocationType":"KNOWLEDGE_BASE","knowledgeBaseLookupInput":{"text":"AAPL price"}}}}}`
)

func TestRunSteps_JSONLinesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(rationaleLine+"\n\n"+kbLine+"\n"), 0o600))

	var out bytes.Buffer
	require.NoError(t, runSteps([]string{path}, nil, &out))

	text := out.String()
	assert.Contains(t, text, "View Processing Steps")
	assert.Contains(t, text, "Step 1  Reasoning")
	assert.Contains(t, text, "Need the price")
	assert.Contains(t, text, "Step 2  Knowledge Base Search")
	assert.Contains(t, text, "Query: AAPL price")
}

func TestRunSteps_ArrayFromStdin(t *testing.T) {
	in := strings.NewReader("[" + rationaleLine + "," + kbLine + "]")

	var out bytes.Buffer
	require.NoError(t, runSteps([]string{"-"}, in, &out))
	assert.Contains(t, out.String(), "Step 2  Knowledge Base Search")
}

func TestRunSteps_NoSteps(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runSteps([]string{"-"}, strings.NewReader(`{"agentId":"A1"}`), &out))
	assert.Equal(t, "1 trace events, no processing steps\n", out.String())
}

func TestRunSteps_Errors(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, runSteps(nil, nil, &out))
	assert.Error(t, runSteps([]string{filepath.Join(t.TempDir(), "missing.jsonl")}, nil, &out))

	err := runSteps([]string{"-"}, strings.NewReader(rationaleLine+"\n\"just text\"\n"), &out)
	assert.ErrorIs(t, err, trace.ErrNotObject)
	assert.ErrorContains(t, err, "value 2")

	err = runSteps([]string{"-"}, strings.NewReader(`[1, 2]`), &out)
	assert.ErrorIs(t, err, trace.ErrNotObject)

	assert.Error(t, runSteps([]string{"-"}, strings.NewReader(`{"agentId":`), &out))
}

func TestReadTraceEvents_KeepsOrder(t *testing.T) {
	events, err := readTraceEvents(strings.NewReader(kbLine + "\n[" + rationaleLine + "]"))
	require.NoError(t, err)
	require.Len(t, events, 2)

	steps := trace.NormalizeAll(events)
	require.Len(t, steps, 2)
	assert.Equal(t, "Knowledge Base Search", steps[0].Description)
	assert.Equal(t, "Reasoning", steps[1].Description)
}
