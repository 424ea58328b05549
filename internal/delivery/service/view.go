package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/assessly/itemdelivery/internal/delivery/domain"
	"github.com/assessly/itemdelivery/internal/delivery/guard"
	"github.com/assessly/itemdelivery/internal/delivery/render"
)

// Rendering is the resolved view plus the response data it should echo.
type Rendering struct {
	View      render.View
	Responses []domain.Response
}

// Render resolves what the candidate should currently see. Terminated
// sessions still render (the exit page); only the token is checked.
func (s *Service) Render(ctx context.Context, sessionID, token string) (Rendering, error) {
	session, err := s.authenticate(ctx, sessionID, token)
	if err != nil {
		return Rendering{}, err
	}
	delivery, err := s.loadDelivery(ctx, session)
	if err != nil {
		return Rendering{}, err
	}
	current, err := s.currentEvent(ctx, session.ID)
	if err != nil {
		return Rendering{}, err
	}

	view, err := render.Resolve(session, current, delivery.Settings, session.Duration(s.now().UTC()))
	if err != nil {
		return Rendering{}, err
	}

	responseEventID := ""
	if view.EchoResponses {
		responseEventID = current.ID
	}
	if view.Mode == render.ModePlayback {
		// Playback shows the target event's content and, for replayed
		// attempts, its responses. Affordances stay those of the current
		// closed state.
		target, err := s.store.GetEvent(ctx, view.PlaybackTargetID)
		if err != nil {
			return Rendering{}, fmt.Errorf("load playback target: %w", err)
		}
		view.Snapshot = target.Snapshot
		view.EchoResponses = target.Kind.IsAttempt()
		responseEventID = ""
		if view.EchoResponses {
			responseEventID = target.ID
		}
	}

	rendering := Rendering{View: view}
	if responseEventID != "" {
		responses, err := s.store.ListResponses(ctx, responseEventID)
		if err != nil {
			return Rendering{}, fmt.Errorf("load responses: %w", err)
		}
		rendering.Responses = responses
	}
	return rendering, nil
}

// Result computes the session's current result document.
func (s *Service) Result(ctx context.Context, sessionID, token string) (json.RawMessage, error) {
	session, err := s.authenticate(ctx, sessionID, token)
	if err != nil {
		return nil, err
	}
	delivery, err := s.loadDelivery(ctx, session)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(session, guard.ActionViewResult, delivery.Settings); err != nil {
		return nil, err
	}
	current, err := s.currentEvent(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	result, err := s.eval.ComputeResult(ctx, delivery.Item, current.Snapshot)
	if err != nil {
		return nil, s.evaluatorFailed("compute result", err)
	}
	s.audit.Access(session.ID, "result")
	return result, nil
}

// Source returns the item definition source.
func (s *Service) Source(ctx context.Context, sessionID, token string) (string, error) {
	session, err := s.authenticate(ctx, sessionID, token)
	if err != nil {
		return "", err
	}
	delivery, err := s.loadDelivery(ctx, session)
	if err != nil {
		return "", err
	}
	if err := s.authorize(session, guard.ActionViewSource, delivery.Settings); err != nil {
		return "", err
	}
	s.audit.Access(session.ID, "source")
	return delivery.Item.Source, nil
}
