// Package storage defines the persistence interfaces for the delivery engine.
package storage

import (
	"context"
	"errors"

	"github.com/assessly/itemdelivery/internal/delivery/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Commit is the atomic write unit of one mutating operation: exactly one
// event, the responses it recorded, and the session's phase flags. All of it
// is persisted together or not at all.
type Commit struct {
	// Session carries the phase flags to persist alongside the event. When
	// CreateSession is set the whole row is inserted; otherwise only the
	// mutable flags are rewritten.
	Session domain.Session
	// CreateSession marks the session as new.
	CreateSession bool
	// Event is appended to the session's history. Its sequence number is
	// assigned by the store.
	Event domain.Event
	// Responses are the rows recorded by the event, if any.
	Responses []domain.Response
}

// SessionStore reads candidate sessions.
type SessionStore interface {
	// GetSession loads a session by ID, or ErrNotFound.
	GetSession(ctx context.Context, id string) (domain.Session, error)
}

// EventStore reads the append-only candidate event history.
type EventStore interface {
	// LatestEvent returns the most recent event in a category for the
	// session, or ErrNotFound if none was recorded yet.
	LatestEvent(ctx context.Context, sessionID string, category domain.Category) (domain.Event, error)
	// ListEvents returns all events in a category for the session in
	// ascending sequence order.
	ListEvents(ctx context.Context, sessionID string, category domain.Category) ([]domain.Event, error)
	// GetEvent loads a single event by ID, or ErrNotFound.
	GetEvent(ctx context.Context, id string) (domain.Event, error)
}

// ResponseStore reads candidate responses keyed by the recording event.
type ResponseStore interface {
	// ListResponses returns the responses recorded by the event, ordered
	// by identifier.
	ListResponses(ctx context.Context, eventID string) ([]domain.Response, error)
}

// DeliveryStore persists delivery definitions (item plus settings).
type DeliveryStore interface {
	// PutDelivery stores or replaces a delivery definition.
	PutDelivery(ctx context.Context, delivery domain.Delivery) error
	// GetDelivery loads a delivery by ID, or ErrNotFound.
	GetDelivery(ctx context.Context, id string) (domain.Delivery, error)
}

// Store aggregates every store the delivery service needs.
type Store interface {
	SessionStore
	EventStore
	ResponseStore
	DeliveryStore

	// CommitEvent persists one operation's writes in a single transaction,
	// returning the event with its assigned sequence number. A failure
	// leaves the session row and history untouched.
	CommitEvent(ctx context.Context, commit Commit) (domain.Event, error)
}
