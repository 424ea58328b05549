package service

import (
	"context"
	"fmt"

	"github.com/assessly/itemdelivery/internal/delivery/domain"
	"github.com/assessly/itemdelivery/internal/observability/metrics"
	"github.com/assessly/itemdelivery/internal/platform/errors"
	"github.com/assessly/itemdelivery/internal/storage"
)

// StartSession creates a session against the delivery, runs item
// initialization and records the INIT event. The returned session carries
// the capability token the candidate must present on every later call.
//
// Items may end themselves during initialization; the session is then
// created already closed.
func (s *Service) StartSession(ctx context.Context, deliveryID string) (domain.Session, error) {
	delivery, err := s.store.GetDelivery(ctx, deliveryID)
	if err != nil {
		if err == storage.ErrNotFound {
			return domain.Session{}, errors.NotFound("delivery not found")
		}
		return domain.Session{}, fmt.Errorf("load delivery: %w", err)
	}

	session, err := domain.CreateSession(domain.CreateSessionInput{DeliveryID: delivery.ID}, s.now, s.newID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}

	snapshot, autoClosed, err := s.eval.InitializeState(ctx, delivery.Item)
	if err != nil {
		return domain.Session{}, s.evaluatorFailed("initialize item state", err)
	}
	closed := autoClosed || snapshot.IsClosed()
	session.Closed = closed
	snapshot = snapshot.WithDuration(session.Duration(s.now().UTC()))
	snapshot.Closed = closed

	// The session row and its init event land in the same transaction so a
	// failure leaves no session without history.
	if _, err := s.commitEvent(ctx, session, commitInput{
		kind:          domain.KindInit,
		snapshot:      snapshot,
		createSession: true,
	}); err != nil {
		return domain.Session{}, err
	}
	metrics.SessionsStartedTotal.Inc()
	return session, nil
}
