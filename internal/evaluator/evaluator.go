// Package evaluator defines the contract the delivery engine requires from
// the item processing collaborator: template processing, response binding and
// validation, outcome (response) processing, forced ending and result
// computation over an opaque state snapshot.
//
// The engine orchestrates calls into an Evaluator but never interprets the
// snapshot beyond the small read contract exposed by Snapshot.
package evaluator

import (
	"context"
	"encoding/json"
	"time"
)

// ItemDefinition identifies one assessment item and carries its source.
type ItemDefinition struct {
	// ID uniquely identifies the item.
	ID string
	// Title is a human-readable item label.
	Title string
	// Source is the item's processing script, opaque to the engine.
	Source string
}

// ResponseKind distinguishes raw text input from a stored artifact reference.
type ResponseKind int

const (
	// ResponseText is raw textual candidate input.
	ResponseText ResponseKind = iota
	// ResponseArtifact references a previously uploaded artifact.
	ResponseArtifact
)

// ResponseValue is one raw candidate input keyed by response identifier.
type ResponseValue struct {
	Kind ResponseKind
	// Text holds the raw value when Kind is ResponseText.
	Text string
	// ArtifactRef and ContentType describe the upload when Kind is ResponseArtifact.
	ArtifactRef string
	ContentType string
}

// Evaluator is the external item processing collaborator.
//
// Calls are synchronous and bounded. A failure from any method is treated as
// fatal for the current engine operation and is never retried automatically,
// since evaluator state is assumed non-idempotent across retries.
type Evaluator interface {
	// InitializeState runs template processing and returns the initial
	// snapshot. autoClosed reports that the item ends immediately after
	// initialisation (e.g. an adaptive item that renders complete).
	InitializeState(ctx context.Context, item ItemDefinition) (snapshot Snapshot, autoClosed bool, err error)

	// Bind binds raw candidate input against the snapshot's expected response
	// shapes. The returned snapshot's BadResponseIdentifiers lists input the
	// evaluator could not bind; InvalidResponseIdentifiers lists bound input
	// failing interaction constraints. Binding never runs outcome processing.
	Bind(ctx context.Context, item ItemDefinition, snapshot Snapshot, responses map[string]ResponseValue) (Snapshot, error)

	// Process commits the bound responses and runs deterministic outcome
	// processing. Callers must only invoke Process when the preceding Bind
	// reported no bad and no invalid identifiers.
	Process(ctx context.Context, item ItemDefinition, snapshot Snapshot) (Snapshot, error)

	// EndSession force-ends the item session at the given timestamp.
	EndSession(ctx context.Context, item ItemDefinition, snapshot Snapshot, at time.Time) (Snapshot, error)

	// ComputeResult derives the result document from a snapshot.
	ComputeResult(ctx context.Context, item ItemDefinition, snapshot Snapshot) (json.RawMessage, error)
}
