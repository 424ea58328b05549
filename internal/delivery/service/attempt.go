package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/assessly/itemdelivery/internal/delivery/domain"
	"github.com/assessly/itemdelivery/internal/delivery/guard"
	"github.com/assessly/itemdelivery/internal/evaluator"
	"github.com/assessly/itemdelivery/internal/platform/errors"
)

// SubmitResponses runs one candidate attempt: bind the submitted values,
// validate them, and, only when every response bound and validated, commit
// them and run outcome processing.
//
// The recorded event kind reflects the worst outcome across the whole
// submission: any unbindable response makes the attempt ATTEMPT_BAD, any
// validation failure makes it ATTEMPT_INVALID, otherwise ATTEMPT_VALID.
// Every submitted response is persisted with its own legality regardless of
// the overall outcome.
func (s *Service) SubmitResponses(ctx context.Context, sessionID, token string, responses map[string]evaluator.ResponseValue) (domain.Event, error) {
	if len(responses) == 0 {
		return domain.Event{}, errors.Logic("attempt carries no responses")
	}

	release := s.locks.acquire(sessionID)
	defer release()

	session, err := s.authenticate(ctx, sessionID, token)
	if err != nil {
		return domain.Event{}, err
	}
	delivery, err := s.loadDelivery(ctx, session)
	if err != nil {
		return domain.Event{}, err
	}
	if err := s.authorize(session, guard.ActionAttempt, delivery.Settings); err != nil {
		return domain.Event{}, err
	}

	current, err := s.currentEvent(ctx, session.ID)
	if err != nil {
		return domain.Event{}, err
	}

	bound, err := s.eval.Bind(ctx, delivery.Item, current.Snapshot, responses)
	if err != nil {
		return domain.Event{}, s.evaluatorFailed("bind responses", err)
	}

	kind := domain.KindAttemptValid
	snapshot := bound
	switch {
	case len(bound.BadResponseIdentifiers) > 0:
		kind = domain.KindAttemptBad
	case len(bound.InvalidResponseIdentifiers) > 0:
		kind = domain.KindAttemptInvalid
	default:
		processed, err := s.eval.Process(ctx, delivery.Item, bound)
		if err != nil {
			return domain.Event{}, s.evaluatorFailed("process responses", err)
		}
		snapshot = processed
	}
	snapshot = snapshot.WithDuration(session.Duration(s.now().UTC()))

	rows, err := s.buildResponses(session, responses, bound)
	if err != nil {
		return domain.Event{}, err
	}
	session.Closed = snapshot.IsClosed()
	event, err := s.commitEvent(ctx, session, commitInput{
		kind:      kind,
		snapshot:  snapshot,
		responses: rows,
	})
	if err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

// buildResponses prepares one response row per submitted identifier, each
// tagged with its own legality. The recording event's ID is assigned at
// commit time.
func (s *Service) buildResponses(session domain.Session, submitted map[string]evaluator.ResponseValue, bound evaluator.Snapshot) ([]domain.Response, error) {
	bad := make(map[string]struct{}, len(bound.BadResponseIdentifiers))
	for _, identifier := range bound.BadResponseIdentifiers {
		bad[identifier] = struct{}{}
	}
	invalid := make(map[string]struct{}, len(bound.InvalidResponseIdentifiers))
	for _, identifier := range bound.InvalidResponseIdentifiers {
		invalid[identifier] = struct{}{}
	}

	identifiers := make([]string, 0, len(submitted))
	for identifier := range submitted {
		identifiers = append(identifiers, identifier)
	}
	sort.Strings(identifiers)

	rows := make([]domain.Response, 0, len(identifiers))
	for _, identifier := range identifiers {
		responseID, err := s.newID()
		if err != nil {
			return nil, fmt.Errorf("generate response id: %w", err)
		}
		value := submitted[identifier]
		legality := domain.LegalityValid
		if _, ok := bad[identifier]; ok {
			legality = domain.LegalityBad
		} else if _, ok := invalid[identifier]; ok {
			legality = domain.LegalityInvalid
		}
		rows = append(rows, domain.Response{
			ID:          responseID,
			SessionID:   session.ID,
			Identifier:  identifier,
			Kind:        value.Kind,
			Text:        value.Text,
			ArtifactRef: value.ArtifactRef,
			ContentType: value.ContentType,
			Legality:    legality,
		})
	}
	return rows, nil
}
