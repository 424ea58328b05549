// Package service orchestrates candidate item delivery sessions.
//
// Every mutating operation follows the same shape: authenticate the session
// token, authorize the action against the current phase and delivery policy,
// run the evaluator, then commit exactly one event capturing the outcome.
// The event, its responses and the session's phase flags are written in one
// store transaction, so nothing is persisted when any step fails.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/assessly/itemdelivery/internal/delivery/domain"
	"github.com/assessly/itemdelivery/internal/delivery/guard"
	"github.com/assessly/itemdelivery/internal/evaluator"
	"github.com/assessly/itemdelivery/internal/observability/audit"
	"github.com/assessly/itemdelivery/internal/observability/metrics"
	"github.com/assessly/itemdelivery/internal/platform/errors"
	"github.com/assessly/itemdelivery/internal/platform/id"
	"github.com/assessly/itemdelivery/internal/storage"
)

// Service coordinates session lifecycle, response submission and review.
type Service struct {
	store storage.Store
	eval  evaluator.Evaluator
	audit *audit.Recorder
	now   func() time.Time
	newID func() (string, error)
	locks *sessionLocks
}

// Config carries the service dependencies. Now and NewID default to the
// wall clock and the platform ID generator.
type Config struct {
	Store     storage.Store
	Evaluator evaluator.Evaluator
	Audit     *audit.Recorder
	Now       func() time.Time
	NewID     func() (string, error)
}

// New builds a Service from the config.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store: cfg.Store,
		eval:  cfg.Evaluator,
		audit: cfg.Audit,
		now:   now,
		newID: newID,
		locks: newSessionLocks(),
	}, nil
}

// authenticate loads the session and verifies the capability token.
func (s *Service) authenticate(ctx context.Context, sessionID, token string) (domain.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Session{}, errors.NotFound("session id is required")
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if err == storage.ErrNotFound {
			return domain.Session{}, errors.NotFound("session not found")
		}
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	if decision := guard.CheckToken(session, token); !decision.Allowed {
		s.deny(session.ID, "authenticate", decision.Denied)
		return domain.Session{}, errors.Forbidden(decision.Denied, "session token mismatch")
	}
	return session, nil
}

// authorize applies the privilege guard and records denials.
func (s *Service) authorize(session domain.Session, action guard.Action, settings domain.Settings) error {
	decision := guard.Authorize(action, session.Phase(), settings)
	if decision.Allowed {
		return nil
	}
	s.deny(session.ID, actionName(action), decision.Denied)
	return errors.Forbidden(decision.Denied, fmt.Sprintf("%s is not permitted", actionName(action)))
}

func (s *Service) deny(sessionID, action string, code errors.Code) {
	s.audit.Denial(sessionID, action, code)
	metrics.GuardDenialTotal.WithLabelValues(string(code)).Inc()
}

func actionName(action guard.Action) string {
	switch action {
	case guard.ActionAttempt:
		return "attempt"
	case guard.ActionClose:
		return "close"
	case guard.ActionReinit:
		return "reinit"
	case guard.ActionReset:
		return "reset"
	case guard.ActionSolution:
		return "solution"
	case guard.ActionPlayback:
		return "playback"
	case guard.ActionTerminate:
		return "terminate"
	case guard.ActionViewResult:
		return "view_result"
	case guard.ActionViewSource:
		return "view_source"
	default:
		return "unknown"
	}
}

// loadDelivery resolves the session's delivery definition.
func (s *Service) loadDelivery(ctx context.Context, session domain.Session) (domain.Delivery, error) {
	delivery, err := s.store.GetDelivery(ctx, session.DeliveryID)
	if err != nil {
		if err == storage.ErrNotFound {
			return domain.Delivery{}, errors.NotFound("delivery not found")
		}
		return domain.Delivery{}, fmt.Errorf("load delivery: %w", err)
	}
	return delivery, nil
}

// currentEvent returns the session's most recent item event. A session
// always has at least its init event; a missing history is a logic fault.
func (s *Service) currentEvent(ctx context.Context, sessionID string) (domain.Event, error) {
	event, err := s.store.LatestEvent(ctx, sessionID, domain.CategoryItem)
	if err != nil {
		if err == storage.ErrNotFound {
			return domain.Event{}, errors.Logic("session has no event history")
		}
		return domain.Event{}, fmt.Errorf("load latest event: %w", err)
	}
	return event, nil
}

// commitInput describes the single event a mutating operation records.
type commitInput struct {
	kind          domain.EventKind
	snapshot      evaluator.Snapshot
	targetEventID string
	responses     []domain.Response
	createSession bool
}

// commitEvent records one event, its responses and the session's phase flags
// in a single store transaction. The caller sets the session's Closed and
// Terminated flags to the state the operation leaves behind; a failed commit
// persists nothing.
func (s *Service) commitEvent(ctx context.Context, session domain.Session, in commitInput) (domain.Event, error) {
	eventID, err := s.newID()
	if err != nil {
		return domain.Event{}, fmt.Errorf("generate event id: %w", err)
	}
	event := domain.Event{
		ID:            eventID,
		SessionID:     session.ID,
		Category:      domain.CategoryItem,
		Kind:          in.kind,
		Timestamp:     s.now().UTC(),
		Snapshot:      in.snapshot,
		TargetEventID: in.targetEventID,
	}
	for i := range in.responses {
		in.responses[i].EventID = eventID
	}
	stored, err := s.store.CommitEvent(ctx, storage.Commit{
		Session:       session,
		CreateSession: in.createSession,
		Event:         event,
		Responses:     in.responses,
	})
	if err != nil {
		return domain.Event{}, fmt.Errorf("commit %s event: %w", in.kind, err)
	}
	s.audit.Action(session.ID, stored)
	metrics.CandidateActionTotal.WithLabelValues(string(in.kind)).Inc()
	return stored, nil
}

func (s *Service) evaluatorFailed(message string, err error) error {
	metrics.EvaluatorFailureTotal.Inc()
	return errors.Evaluator(message, err)
}
