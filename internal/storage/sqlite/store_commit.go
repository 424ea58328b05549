package sqlite

import (
	"context"
	"fmt"

	"github.com/assessly/itemdelivery/internal/delivery/domain"
	"github.com/assessly/itemdelivery/internal/storage"
)

// CommitEvent writes one operation's session row, event and responses in a
// single transaction. A failure rolls everything back, so the history never
// gains an event without its responses or a matching session phase.
func (s *Store) CommitEvent(ctx context.Context, commit storage.Commit) (domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return domain.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Event{}, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, fmt.Errorf("begin commit event: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if commit.CreateSession {
		if err := insertSession(ctx, tx, commit.Session); err != nil {
			return domain.Event{}, err
		}
	} else {
		if err := updateSessionPhase(ctx, tx, commit.Session); err != nil {
			return domain.Event{}, err
		}
	}
	event, err := insertEvent(ctx, tx, commit.Event)
	if err != nil {
		return domain.Event{}, err
	}
	if err := insertResponses(ctx, tx, commit.Responses); err != nil {
		return domain.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Event{}, fmt.Errorf("commit event: %w", err)
	}
	return event, nil
}
