// ABOUTME: steps command that turns saved agent trace payloads into processing steps
// ABOUTME: Reads JSON objects, one per line or wrapped in arrays, from a file or stdin

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/2389/alphabot/internal/trace"
)

func runSteps(args []string, stdin io.Reader, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: alphabot steps FILE (use - for stdin)")
	}

	in := stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	events, err := readTraceEvents(in)
	if err != nil {
		return err
	}

	steps := trace.NormalizeAll(events)
	if len(steps) == 0 {
		fmt.Fprintf(out, "%d trace events, no processing steps\n", len(events))
		return nil
	}
	printSteps(out, steps)
	return nil
}

// readTraceEvents decodes a stream of trace payloads. Each top-level value is
// either one payload or an array of them.
func readTraceEvents(r io.Reader) ([]*trace.Event, error) {
	dec := json.NewDecoder(r)

	var events []*trace.Event
	for n := 1; ; n++ {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading value %d: %w", n, err)
		}

		if !bytes.HasPrefix(raw, []byte("[")) {
			ev, err := trace.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("value %d: %w", n, err)
			}
			events = append(events, ev)
			continue
		}

		var items []map[string]any
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("value %d: %w", n, trace.ErrNotObject)
		}
		for _, item := range items {
			events = append(events, trace.FromMap(item))
		}
	}
}
