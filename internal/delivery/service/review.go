package service

import (
	"context"

	"github.com/assessly/itemdelivery/internal/delivery/domain"
	"github.com/assessly/itemdelivery/internal/delivery/guard"
	"github.com/assessly/itemdelivery/internal/platform/errors"
	"github.com/assessly/itemdelivery/internal/storage"
)

// RequestSolution switches the session to solution display. Requesting the
// solution while still interacting force-ends the item first; there is no
// way back to attempting afterwards.
func (s *Service) RequestSolution(ctx context.Context, sessionID, token string) (domain.Event, error) {
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
	if err := s.authorize(session, guard.ActionSolution, delivery.Settings); err != nil {
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
	return s.commitEvent(ctx, session, commitInput{kind: domain.KindSolution, snapshot: snapshot})
}

// SetPlayback switches the closed session to replaying the given earlier
// event. The target must belong to this session and be of a kind that can
// be replayed. Playback never alters the current item state.
func (s *Service) SetPlayback(ctx context.Context, sessionID, token, targetEventID string) (domain.Event, error) {
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
	if err := s.authorize(session, guard.ActionPlayback, delivery.Settings); err != nil {
		return domain.Event{}, err
	}

	target, err := s.store.GetEvent(ctx, targetEventID)
	if err != nil {
		if err == storage.ErrNotFound {
			return domain.Event{}, errors.NotFound("playback target not found")
		}
		return domain.Event{}, err
	}
	if decision := guard.CheckPlaybackTarget(session.ID, target); !decision.Allowed {
		s.deny(session.ID, "playback", decision.Denied)
		return domain.Event{}, errors.Forbidden(decision.Denied, "event cannot be replayed")
	}

	current, err := s.currentEvent(ctx, session.ID)
	if err != nil {
		return domain.Event{}, err
	}
	snapshot := current.Snapshot.WithDuration(session.Duration(s.now().UTC()))

	return s.commitEvent(ctx, session, commitInput{
		kind:          domain.KindPlayback,
		snapshot:      snapshot,
		targetEventID: target.ID,
	})
}

// PlaybackCandidates lists the session's events eligible for playback, in
// recording order.
func (s *Service) PlaybackCandidates(ctx context.Context, sessionID, token string) ([]domain.Event, error) {
	session, err := s.authenticate(ctx, sessionID, token)
	if err != nil {
		return nil, err
	}
	delivery, err := s.loadDelivery(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(session, guard.ActionPlayback, delivery.Settings); err != nil {
		return nil, err
	}

	events, err := s.store.ListEvents(ctx, session.ID, domain.CategoryItem)
	if err != nil {
		return nil, err
	}
	candidates := make([]domain.Event, 0, len(events))
	for _, event := range events {
		if event.Kind.PlaybackCapable() {
			candidates = append(candidates, event)
		}
	}
	return candidates, nil
}
