package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agentflow-dev/agentflow/pkg/models"
)

// Store provides durable storage for sessions, events and the auxiliary
// insight/cron tables. All writes go through short per-call transactions;
// readers see an append and its session-row update atomically or not at all.
type Store struct {
	db *sql.DB
}

// New creates a Store over an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

const sessionSelect = `
SELECT s.id, s.source, s.start_time, s.last_event_time, s.status, s.metadata, s.user_id,
       (SELECT count(*) FROM events e WHERE e.session_id = s.id),
       (SELECT e.type FROM events e WHERE e.session_id = s.id ORDER BY e.timestamp DESC, e.seq DESC LIMIT 1),
       (SELECT e.text FROM events e WHERE e.session_id = s.id AND e.text IS NOT NULL ORDER BY e.timestamp DESC, e.seq DESC LIMIT 1)
FROM sessions s`

// Append upserts the session row and inserts the event in one transaction.
// Status side-rules apply on the session row whether the event creates it
// or lands on it: an error-category event marks the session error,
// session.end marks it completed, and any event landing on a completed
// session reactivates it. Returns the session as it reads after the append,
// derived fields applied. The event's Seq is filled in.
func (s *Store) Append(ctx context.Context, userID *string, e *models.Event) (*models.Session, error) {
	if e == nil {
		return nil, NewValidationError("event", "required")
	}
	if e.ID == "" {
		return nil, NewValidationError("id", "required")
	}
	if e.SessionID == "" {
		return nil, NewValidationError("sessionId", "required")
	}

	toolInput, err := marshalColumn(e.ToolInput)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal toolInput: %w", err)
	}
	toolOutput, err := marshalColumn(e.ToolOutput)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal toolOutput: %w", err)
	}
	meta, err := marshalColumn(e.Meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal meta: %w", err)
	}

	isError := e.Category == models.CategoryError
	isEnd := e.Type == models.TypeSessionEnd

	// Session metadata accumulates the meta carried on session.start events;
	// later merges come through UpdateSessionMeta.
	var startMeta []byte
	if e.Type == models.TypeSessionStart && len(e.Meta) > 0 {
		startMeta = meta
	}
	if startMeta == nil {
		startMeta = []byte(`{}`)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, source, start_time, last_event_time, status, metadata, user_id)
		VALUES ($1, $2, $3, $3,
			CASE WHEN $6 THEN 'error' WHEN $7 THEN 'completed' ELSE 'active' END,
			$4, $5)
		ON CONFLICT (id) DO UPDATE SET
			last_event_time = GREATEST(sessions.last_event_time, EXCLUDED.last_event_time),
			metadata = sessions.metadata || EXCLUDED.metadata,
			user_id = COALESCE(sessions.user_id, EXCLUDED.user_id),
			status = CASE
				WHEN $6 THEN 'error'
				WHEN $7 THEN 'completed'
				WHEN sessions.status = 'completed' THEN 'active'
				ELSE sessions.status
			END`,
		e.SessionID, e.Source, e.Timestamp, startMeta, userID, isError, isEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert session: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO events (id, session_id, timestamp, source, category, type, role, text, tool_name, tool_input, tool_output, error, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING seq`,
		e.ID, e.SessionID, e.Timestamp, e.Source, e.Category, e.Type,
		e.Role, e.Text, e.ToolName, toolInput, toolOutput, e.Error, meta).Scan(&e.Seq)
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	session, err := scanSession(tx.QueryRowContext(ctx, sessionSelect+" WHERE s.id = $1", e.SessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to reload session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit append: %w", err)
	}

	session.ApplyEffectiveStatus(time.Now().UnixMilli())
	return session, nil
}

// GetSession returns one session with derived fields applied.
func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx, sessionSelect+" WHERE s.id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	session.ApplyEffectiveStatus(time.Now().UnixMilli())
	return session, nil
}

// ListSessions returns all sessions ordered by last event time, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx, sessionSelect+" ORDER BY s.last_event_time DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	now := time.Now().UnixMilli()
	sessions := []*models.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		session.ApplyEffectiveStatus(now)
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

const eventSelect = `
SELECT id, seq, session_id, timestamp, source, category, type, role, text, tool_name, tool_input, tool_output, error, meta
FROM events`

// GetSessionEvents returns the full event history of a session in timestamp
// order, ties broken by insertion order.
func (s *Store) GetSessionEvents(ctx context.Context, sessionID string) ([]*models.Event, error) {
	return s.queryEvents(ctx, eventSelect+" WHERE session_id = $1 ORDER BY timestamp ASC, seq ASC", sessionID)
}

// GetSessionEventsAfter returns events inserted after the given sequence
// number, in insertion order. Used for catchup across a live subscription.
func (s *Store) GetSessionEventsAfter(ctx context.Context, sessionID string, afterSeq int64) ([]*models.Event, error) {
	return s.queryEvents(ctx, eventSelect+" WHERE session_id = $1 AND seq > $2 ORDER BY seq ASC", sessionID, afterSeq)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]*models.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []*models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// UpdateSessionMeta shallow-merges patch into the session's metadata map.
// Top-level keys in patch override existing keys; nested objects are
// replaced, not merged.
func (s *Store) UpdateSessionMeta(ctx context.Context, id string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	b, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata patch: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET metadata = metadata || $2 WHERE id = $1`, id, b)
	if err != nil {
		return fmt.Errorf("failed to update session metadata: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession removes a session and, via cascade, its events.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearAll purges every session and event.
func (s *Store) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	return tx.Commit()
}

// CountEventsSince counts a user's events with a timestamp strictly after
// sinceMs. Sessions without an owner are excluded.
func (s *Store) CountEventsSince(ctx context.Context, userID string, sinceMs int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM events e
		JOIN sessions s ON s.id = e.session_id
		WHERE s.user_id = $1 AND e.timestamp > $2`, userID, sinceMs).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// MaxEventTimestamp returns the newest event timestamp across a user's
// sessions, or 0 when the user has none.
func (s *Store) MaxEventTimestamp(ctx context.Context, userID string) (int64, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT max(e.timestamp) FROM events e
		JOIN sessions s ON s.id = e.session_id
		WHERE s.user_id = $1`, userID).Scan(&ts)
	if err != nil {
		return 0, fmt.Errorf("failed to query max event timestamp: %w", err)
	}
	return ts.Int64, nil
}

// DistinctUserIDs returns every user id that owns at least one session.
func (s *Store) DistinctUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM sessions WHERE user_id IS NOT NULL ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RunReadOnlyQuery executes an arbitrary SELECT inside a read-only
// transaction and returns the rows as generic maps. The analyzer's SQL tool
// goes through here so it can never mutate state.
func (s *Store) RunReadOnlyQuery(ctx context.Context, query string) ([]map[string]any, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to start read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		session       models.Session
		metadata      []byte
		lastEventType sql.NullString
		lastEventText sql.NullString
	)
	err := row.Scan(
		&session.ID, &session.Source, &session.StartTime, &session.LastEventTime,
		&session.Status, &metadata, &session.UserID,
		&session.EventCount, &lastEventType, &lastEventText)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &session.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session metadata: %w", err)
		}
	}
	session.LastEventType = lastEventType.String
	session.LastEventText = lastEventText.String
	return &session, nil
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var (
		e          models.Event
		toolInput  []byte
		toolOutput []byte
		meta       []byte
	)
	err := row.Scan(
		&e.ID, &e.Seq, &e.SessionID, &e.Timestamp, &e.Source, &e.Category, &e.Type,
		&e.Role, &e.Text, &e.ToolName, &toolInput, &toolOutput, &e.Error, &meta)
	if err != nil {
		return nil, err
	}
	if len(toolInput) > 0 {
		if err := json.Unmarshal(toolInput, &e.ToolInput); err != nil {
			return nil, fmt.Errorf("failed to unmarshal toolInput: %w", err)
		}
	}
	if len(toolOutput) > 0 {
		if err := json.Unmarshal(toolOutput, &e.ToolOutput); err != nil {
			return nil, fmt.Errorf("failed to unmarshal toolOutput: %w", err)
		}
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal meta: %w", err)
		}
	}
	return &e, nil
}

// marshalColumn renders a JSONB column value, mapping nil to SQL NULL.
func marshalColumn(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok && m == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
