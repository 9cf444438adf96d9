// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Keeps the invocation ledger with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Concurrent sessions write at the same time; wait instead of failing.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS invocations (
			id           TEXT PRIMARY KEY,
			session_id   TEXT NOT NULL,
			agent_id     TEXT NOT NULL,
			backend      TEXT NOT NULL,
			started_at   TEXT NOT NULL,
			duration_ms  INTEGER NOT NULL,
			prompt_bytes INTEGER NOT NULL,
			answer_bytes INTEGER NOT NULL,
			trace_events INTEGER NOT NULL,
			steps        INTEGER NOT NULL,
			error        TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_invocations_session
			ON invocations(session_id, started_at);

		CREATE INDEX IF NOT EXISTS idx_invocations_started
			ON invocations(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveInvocation stores one ledger row.
func (s *SQLiteStore) SaveInvocation(ctx context.Context, inv *Invocation) error {
	query := `
		INSERT INTO invocations (
			id, session_id, agent_id, backend, started_at, duration_ms,
			prompt_bytes, answer_bytes, trace_events, steps, error
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		inv.ID,
		inv.SessionID,
		inv.AgentID,
		inv.Backend,
		inv.StartedAt.UTC().Format(timeLayout),
		inv.Duration.Milliseconds(),
		inv.PromptBytes,
		inv.AnswerBytes,
		inv.TraceEvents,
		inv.Steps,
		nullString(inv.Error),
	)
	if err != nil {
		return fmt.Errorf("inserting invocation: %w", err)
	}

	s.logger.Debug("saved invocation",
		"id", inv.ID,
		"session_id", inv.SessionID,
		"outcome", inv.Outcome(),
		"duration_ms", inv.Duration.Milliseconds(),
	)
	return nil
}

// GetInvocation retrieves one ledger row by ID.
func (s *SQLiteStore) GetInvocation(ctx context.Context, id string) (*Invocation, error) {
	query := `
		SELECT id, session_id, agent_id, backend, started_at, duration_ms,
		       prompt_bytes, answer_bytes, trace_events, steps, error
		FROM invocations
		WHERE id = ?
	`

	inv, err := scanInvocation(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvocations returns ledger rows, newest first.
func (s *SQLiteStore) ListInvocations(ctx context.Context, filter InvocationFilter) ([]*Invocation, error) {
	where, args := filter.where()
	query := `
		SELECT id, session_id, agent_id, backend, started_at, duration_ms,
		       prompt_bytes, answer_bytes, trace_events, steps, error
		FROM invocations
		WHERE 1=1` + where + `
		ORDER BY started_at DESC
		LIMIT ?
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying invocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invocation rows: %w", err)
	}

	return out, nil
}

// GetInvocationStats returns aggregated ledger statistics with optional filters.
func (s *SQLiteStore) GetInvocationStats(ctx context.Context, filter InvocationFilter) (*InvocationStats, error) {
	where, args := filter.where()
	query := `
		SELECT
			COUNT(*) as invocation_count,
			COALESCE(SUM(CASE WHEN error IS NOT NULL THEN 1 ELSE 0 END), 0) as failures,
			COALESCE(SUM(steps), 0) as total_steps,
			COALESCE(SUM(answer_bytes), 0) as total_answer_bytes,
			COALESCE(AVG(duration_ms), 0) as avg_ms,
			COALESCE(MAX(duration_ms), 0) as max_ms,
			COUNT(DISTINCT session_id) as sessions
		FROM invocations
		WHERE 1=1` + where

	var (
		stats InvocationStats
		avgMS float64
		maxMS int64
	)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Count,
		&stats.Failures,
		&stats.TotalSteps,
		&stats.TotalAnswerBytes,
		&avgMS,
		&maxMS,
		&stats.Sessions,
	)
	if err != nil {
		return nil, fmt.Errorf("querying invocation stats: %w", err)
	}

	stats.AvgDuration = time.Duration(avgMS * float64(time.Millisecond))
	stats.MaxDuration = time.Duration(maxMS) * time.Millisecond
	return &stats, nil
}

// where renders the filter as SQL conditions appended to "WHERE 1=1".
func (f InvocationFilter) where() (string, []any) {
	var (
		clause string
		args   []any
	)
	if f.SessionID != nil {
		clause += " AND session_id = ?"
		args = append(args, *f.SessionID)
	}
	if f.Since != nil {
		clause += " AND started_at >= ?"
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	if f.Until != nil {
		clause += " AND started_at < ?"
		args = append(args, f.Until.UTC().Format(timeLayout))
	}
	return clause, args
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvocation(row rowScanner) (*Invocation, error) {
	var (
		inv        Invocation
		startedStr string
		durationMS int64
		errText    sql.NullString
	)

	err := row.Scan(
		&inv.ID,
		&inv.SessionID,
		&inv.AgentID,
		&inv.Backend,
		&startedStr,
		&durationMS,
		&inv.PromptBytes,
		&inv.AnswerBytes,
		&inv.TraceEvents,
		&inv.Steps,
		&errText,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning invocation row: %w", err)
	}

	inv.StartedAt, err = time.Parse(timeLayout, startedStr)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	inv.Duration = time.Duration(durationMS) * time.Millisecond
	if errText.Valid {
		inv.Error = errText.String
	}

	return &inv, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Ensure SQLiteStore implements Store interface.
var _ Store = (*SQLiteStore)(nil)
