package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/assessly/itemdelivery/internal/delivery/domain"
	"github.com/assessly/itemdelivery/internal/storage"
)

// insertSession inserts one session record within the caller's transaction.
func insertSession(ctx context.Context, tx *sql.Tx, session domain.Session) error {
	sessionID := strings.TrimSpace(session.ID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(session.Token) == "" {
		return fmt.Errorf("session token is required")
	}
	if strings.TrimSpace(session.DeliveryID) == "" {
		return fmt.Errorf("delivery id is required")
	}

	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO sessions (id, token, delivery_id, created_at, closed, terminated)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID,
		session.Token,
		session.DeliveryID,
		toMillis(session.CreatedAt),
		boolToInt(session.Closed),
		boolToInt(session.Terminated),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns one session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Session{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Session{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, token, delivery_id, created_at, closed, terminated
		   FROM sessions
		  WHERE id = ?`,
		id,
	)

	var session domain.Session
	var createdAt int64
	var closed int
	var terminated int
	err := row.Scan(&session.ID, &session.Token, &session.DeliveryID, &createdAt, &closed, &terminated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, storage.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	session.CreatedAt = fromMillis(createdAt)
	session.Closed = closed != 0
	session.Terminated = terminated != 0
	return session, nil
}

// updateSessionPhase rewrites the mutable phase flags of an existing session
// within the caller's transaction.
func updateSessionPhase(ctx context.Context, tx *sql.Tx, session domain.Session) error {
	sessionID := strings.TrimSpace(session.ID)
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	result, err := tx.ExecContext(
		ctx,
		`UPDATE sessions SET closed = ?, terminated = ? WHERE id = ?`,
		boolToInt(session.Closed),
		boolToInt(session.Terminated),
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
