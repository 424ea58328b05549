// Package domain holds the candidate delivery domain model: sessions,
// events, responses and delivery settings.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/assessly/itemdelivery/internal/platform/id"
)

// Phase is the derived lifecycle stage of a candidate session.
type Phase int

const (
	// PhaseInteracting indicates the candidate may still act on the item.
	PhaseInteracting Phase = iota
	// PhaseClosed indicates the item session has ended but review actions
	// may still be permitted.
	PhaseClosed
	// PhaseTerminated is absorbing; no further mutation is ever accepted.
	PhaseTerminated
)

// String returns the phase name for logs and audit records.
func (p Phase) String() string {
	switch p {
	case PhaseInteracting:
		return "INTERACTING"
	case PhaseClosed:
		return "CLOSED"
	case PhaseTerminated:
		return "TERMINATED"
	default:
		return fmt.Sprintf("PHASE(%d)", int(p))
	}
}

var (
	// ErrEmptyDeliveryID indicates a missing delivery reference.
	ErrEmptyDeliveryID = errors.New("delivery id is required")
)

// Session is one candidate's run of a single assessment item.
//
// Identity is capability-style: callers authenticate by presenting the
// session token, not an identity. The session row carries only denormalized
// phase flags; the event history is the source of truth for current state.
type Session struct {
	ID         string
	Token      string
	DeliveryID string
	CreatedAt  time.Time
	Closed     bool
	Terminated bool
}

// Phase derives the lifecycle stage from the session flags.
func (s Session) Phase() Phase {
	switch {
	case s.Terminated:
		return PhaseTerminated
	case s.Closed:
		return PhaseClosed
	default:
		return PhaseInteracting
	}
}

// CreateSessionInput describes the metadata needed to create a session.
type CreateSessionInput struct {
	DeliveryID string
}

// CreateSession creates a new session with a generated ID, token and
// creation timestamp. The session starts in the interacting phase.
func CreateSession(input CreateSessionInput, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	deliveryID := strings.TrimSpace(input.DeliveryID)
	if deliveryID == "" {
		return Session{}, ErrEmptyDeliveryID
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	return Session{
		ID:         sessionID,
		Token:      uuid.NewString(),
		DeliveryID: deliveryID,
		CreatedAt:  now().UTC(),
	}, nil
}

// Duration computes the session's wall-clock duration in seconds at the
// given instant. Duration is never paused and is monotonically
// non-decreasing across a session's event sequence.
func (s Session) Duration(at time.Time) float64 {
	d := at.Sub(s.CreatedAt).Seconds()
	if d < 0 {
		return 0
	}
	return d
}
