package service

import (
	"context"

	"github.com/assessly/itemdelivery/internal/delivery/domain"
	"github.com/assessly/itemdelivery/internal/delivery/guard"
	"github.com/assessly/itemdelivery/internal/platform/errors"
)

// CloseSession ends the attempting phase at the candidate's request.
func (s *Service) CloseSession(ctx context.Context, sessionID, token string) (domain.Event, error) {
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
	if err := s.authorize(session, guard.ActionClose, delivery.Settings); err != nil {
		return domain.Event{}, err
	}

	current, err := s.currentEvent(ctx, session.ID)
	if err != nil {
		return domain.Event{}, err
	}
	now := s.now().UTC()
	snapshot, err := s.eval.EndSession(ctx, delivery.Item, current.Snapshot, now)
	if err != nil {
		return domain.Event{}, s.evaluatorFailed("end item session", err)
	}
	snapshot = snapshot.WithDuration(session.Duration(now))

	session.Closed = true
	return s.commitEvent(ctx, session, commitInput{kind: domain.KindClose, snapshot: snapshot})
}

// ReinitSession discards all item state and reruns initialization from
// scratch. Unlike reset, responses and outcomes set since the start are not
// restored from history; the item starts over. A closed session reopens
// unless the item closes itself again during initialization.
func (s *Service) ReinitSession(ctx context.Context, sessionID, token string) (domain.Event, error) {
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
	if err := s.authorize(session, guard.ActionReinit, delivery.Settings); err != nil {
		return domain.Event{}, err
	}

	snapshot, autoClosed, err := s.eval.InitializeState(ctx, delivery.Item)
	if err != nil {
		return domain.Event{}, s.evaluatorFailed("reinitialize item state", err)
	}
	closed := autoClosed || snapshot.IsClosed()
	snapshot = snapshot.WithDuration(session.Duration(s.now().UTC()))
	snapshot.Closed = closed

	session.Closed = closed
	return s.commitEvent(ctx, session, commitInput{kind: domain.KindReinit, snapshot: snapshot})
}

// ResetSession restores the snapshot recorded by the most recent reinit, or
// the original init when the session was never reinitialized. Attempts made
// since then disappear from the current state but stay in history.
func (s *Service) ResetSession(ctx context.Context, sessionID, token string) (domain.Event, error) {
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
	if err := s.authorize(session, guard.ActionReset, delivery.Settings); err != nil {
		return domain.Event{}, err
	}

	baseline, err := s.resetBaseline(ctx, session.ID)
	if err != nil {
		return domain.Event{}, err
	}
	snapshot := baseline.Snapshot.Clone()
	snapshot = snapshot.WithDuration(session.Duration(s.now().UTC()))

	session.Closed = snapshot.IsClosed()
	return s.commitEvent(ctx, session, commitInput{kind: domain.KindReset, snapshot: snapshot})
}

// resetBaseline finds the event whose snapshot a reset restores: the newest
// REINIT, falling back to the session's original INIT.
func (s *Service) resetBaseline(ctx context.Context, sessionID string) (domain.Event, error) {
	events, err := s.store.ListEvents(ctx, sessionID, domain.CategoryItem)
	if err != nil {
		return domain.Event{}, err
	}
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == domain.KindReinit {
			return events[i], nil
		}
	}
	for _, event := range events {
		if event.Kind == domain.KindInit {
			return event, nil
		}
	}
	return domain.Event{}, errors.Logic("session has no init event")
}

// Terminate permanently ends the session. The item is force-ended first so
// its final state is recorded, then the session enters the absorbing
// terminated phase.
func (s *Service) Terminate(ctx context.Context, sessionID, token string) (domain.Event, error) {
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
	if err := s.authorize(session, guard.ActionTerminate, delivery.Settings); err != nil {
		return domain.Event{}, err
	}

	current, err := s.currentEvent(ctx, session.ID)
	if err != nil {
		return domain.Event{}, err
	}
	now := s.now().UTC()
	snapshot := current.Snapshot
	if !snapshot.IsClosed() {
		snapshot, err = s.eval.EndSession(ctx, delivery.Item, snapshot, now)
		if err != nil {
			return domain.Event{}, s.evaluatorFailed("end item session", err)
		}
	}
	snapshot = snapshot.WithDuration(session.Duration(now))

	session.Closed = true
	session.Terminated = true
	return s.commitEvent(ctx, session, commitInput{kind: domain.KindTerminate, snapshot: snapshot})
}
