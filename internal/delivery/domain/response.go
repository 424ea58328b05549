package domain

import "github.com/assessly/itemdelivery/internal/evaluator"

// Legality classifies one submitted response.
type Legality string

const (
	// LegalityValid marks a response that bound and validated.
	LegalityValid Legality = "VALID"
	// LegalityBad marks a response the evaluator could not bind.
	LegalityBad Legality = "BAD"
	// LegalityInvalid marks a bound response failing interaction constraints.
	LegalityInvalid Legality = "INVALID"
)

// Response is one persisted candidate response, linked to the attempt event
// that recorded it. Responses are created fresh on each attempt, never
// mutated, and superseded (not deleted) by later attempts.
type Response struct {
	ID         string
	SessionID  string
	EventID    string
	Identifier string
	Kind       evaluator.ResponseKind
	// Text holds the raw value for text responses.
	Text string
	// ArtifactRef and ContentType describe artifact responses.
	ArtifactRef string
	ContentType string
	Legality    Legality
}
