package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/assessly/itemdelivery/internal/delivery/domain"
	"github.com/assessly/itemdelivery/internal/evaluator"
)

// insertResponses stores the responses recorded by one event within the
// caller's transaction.
func insertResponses(ctx context.Context, tx *sql.Tx, responses []domain.Response) error {
	for _, response := range responses {
		if strings.TrimSpace(response.ID) == "" {
			return fmt.Errorf("response id is required")
		}
		if strings.TrimSpace(response.EventID) == "" {
			return fmt.Errorf("response event id is required")
		}
		if strings.TrimSpace(response.Identifier) == "" {
			return fmt.Errorf("response identifier is required")
		}
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO responses (id, session_id, event_id, identifier, kind, text_value, artifact_ref, content_type, legality)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			response.ID,
			response.SessionID,
			response.EventID,
			response.Identifier,
			int(response.Kind),
			response.Text,
			response.ArtifactRef,
			response.ContentType,
			string(response.Legality),
		)
		if err != nil {
			return fmt.Errorf("put response %s: %w", response.Identifier, err)
		}
	}
	return nil
}

// ListResponses returns the responses recorded by one event, ordered by
// identifier.
func (s *Store) ListResponses(ctx context.Context, eventID string) ([]domain.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, fmt.Errorf("event id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, session_id, event_id, identifier, kind, text_value, artifact_ref, content_type, legality
		   FROM responses
		  WHERE event_id = ?
		  ORDER BY identifier ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var responses []domain.Response
	for rows.Next() {
		var response domain.Response
		var kind int
		var legality string
		err := rows.Scan(
			&response.ID,
			&response.SessionID,
			&response.EventID,
			&response.Identifier,
			&kind,
			&response.Text,
			&response.ArtifactRef,
			&response.ContentType,
			&legality,
		)
		if err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		response.Kind = evaluator.ResponseKind(kind)
		response.Legality = domain.Legality(legality)
		responses = append(responses, response)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return responses, nil
}
