// Package store provides the invocation ledger using SQLite.
//
// # Overview
//
// Every agent invocation made by the chat front-end can be recorded as an
// Invocation row: which session made it, which agent and backend served it,
// when it started, how long it took, how large the prompt and answer were,
// how many trace events and display steps it produced, and the error text if
// it failed.
//
// The ledger deliberately holds no prompt or answer text. Conversations live
// in memory (see package session) and are gone after a restart.
//
// # Interfaces
//
//   - Recorder: SaveInvocation only, used by the conversation service
//   - Store: Recorder plus queries, stats, Ping and Close
//
// SQLiteStore implements Store on modernc.org/sqlite (pure Go, no cgo).
// MockStore is an in-memory implementation for tests.
//
// # Usage
//
//	s, err := store.NewSQLiteStore("/var/lib/alphabot/ledger.db")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	stats, err := s.GetInvocationStats(ctx, store.InvocationFilter{})
//
// # Timestamps
//
// Times are stored as fixed-width UTC text so range filters can compare them
// as strings.
package store
