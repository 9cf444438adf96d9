// ABOUTME: In-memory Stream implementation backed by a fixed event slice.
// ABOUTME: Used by the echo backend and by tests that script agent output.

package agent

import "sync"

// SliceStream replays a fixed list of events, then reports err.
type SliceStream struct {
	events chan Event
	err    error

	closeOnce sync.Once
	done      chan struct{}
}

// NewSliceStream returns a stream that yields events in order and then
// terminates with err (nil for a clean end).
func NewSliceStream(events []Event, err error) *SliceStream {
	s := &SliceStream{
		events: make(chan Event),
		err:    err,
		done:   make(chan struct{}),
	}
	go s.run(events)
	return s
}

func (s *SliceStream) run(events []Event) {
	defer close(s.events)
	for _, ev := range events {
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

// Events implements Stream.
func (s *SliceStream) Events() <-chan Event { return s.events }

// Err implements Stream. It is only meaningful after Events is closed.
func (s *SliceStream) Err() error { return s.err }

// Close stops delivery. Safe to call more than once.
func (s *SliceStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
