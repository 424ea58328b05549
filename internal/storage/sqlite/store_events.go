package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/assessly/itemdelivery/internal/delivery/domain"
	"github.com/assessly/itemdelivery/internal/evaluator"
	"github.com/assessly/itemdelivery/internal/storage"
)

// insertEvent appends the event within the caller's transaction, assigning
// the next sequence number for the session and category. Sequence numbers
// start at 1 and never repeat or reorder within a session.
func insertEvent(ctx context.Context, tx *sql.Tx, event domain.Event) (domain.Event, error) {
	if strings.TrimSpace(event.ID) == "" {
		return domain.Event{}, fmt.Errorf("event id is required")
	}
	if strings.TrimSpace(event.SessionID) == "" {
		return domain.Event{}, fmt.Errorf("session id is required")
	}
	if event.Category == "" {
		return domain.Event{}, fmt.Errorf("event category is required")
	}
	if event.Kind == "" {
		return domain.Event{}, fmt.Errorf("event kind is required")
	}

	snapshot, err := json.Marshal(event.Snapshot)
	if err != nil {
		return domain.Event{}, fmt.Errorf("encode event snapshot: %w", err)
	}

	var seq uint64
	row := tx.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1
		   FROM events
		  WHERE session_id = ? AND category = ?`,
		event.SessionID,
		event.Category,
	)
	if err := row.Scan(&seq); err != nil {
		return domain.Event{}, fmt.Errorf("next event seq: %w", err)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO events (id, session_id, seq, category, kind, timestamp_ms, snapshot, target_event_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.SessionID,
		seq,
		string(event.Category),
		string(event.Kind),
		toMillis(event.Timestamp),
		string(snapshot),
		event.TargetEventID,
	)
	if err != nil {
		return domain.Event{}, fmt.Errorf("append event: %w", err)
	}

	event.Seq = seq
	return event, nil
}

// LatestEvent returns the newest event in a category for the session.
func (s *Store) LatestEvent(ctx context.Context, sessionID string, category domain.Category) (domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return domain.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Event{}, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Event{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, session_id, seq, category, kind, timestamp_ms, snapshot, target_event_id
		   FROM events
		  WHERE session_id = ? AND category = ?
		  ORDER BY seq DESC
		  LIMIT 1`,
		sessionID,
		string(category),
	)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Event{}, storage.ErrNotFound
		}
		return domain.Event{}, fmt.Errorf("latest event: %w", err)
	}
	return event, nil
}

// ListEvents returns every event in a category for the session in ascending
// sequence order.
func (s *Store) ListEvents(ctx context.Context, sessionID string, category domain.Category) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, session_id, seq, category, kind, timestamp_ms, snapshot, target_event_id
		   FROM events
		  WHERE session_id = ? AND category = ?
		  ORDER BY seq ASC`,
		sessionID,
		string(category),
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// GetEvent returns one event by ID.
func (s *Store) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return domain.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Event{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Event{}, fmt.Errorf("event id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, session_id, seq, category, kind, timestamp_ms, snapshot, target_event_id
		   FROM events
		  WHERE id = ?`,
		id,
	)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Event{}, storage.ErrNotFound
		}
		return domain.Event{}, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (domain.Event, error) {
	var event domain.Event
	var category string
	var kind string
	var timestamp int64
	var snapshot string
	err := row.Scan(
		&event.ID,
		&event.SessionID,
		&event.Seq,
		&category,
		&kind,
		&timestamp,
		&snapshot,
		&event.TargetEventID,
	)
	if err != nil {
		return domain.Event{}, err
	}
	event.Category = domain.Category(category)
	event.Kind = domain.EventKind(kind)
	event.Timestamp = fromMillis(timestamp)
	var snap evaluator.Snapshot
	if err := json.Unmarshal([]byte(snapshot), &snap); err != nil {
		return domain.Event{}, fmt.Errorf("decode event snapshot: %w", err)
	}
	event.Snapshot = snap
	return event, nil
}
