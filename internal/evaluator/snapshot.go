package evaluator

import "encoding/json"

// Snapshot is an immutable capture of the item processing state at one point
// in time. The engine reads only the exported accessors; State is opaque.
//
// Snapshots are value objects: once recorded in history they are never
// mutated in place. Deriving a new state means cloning and appending.
type Snapshot struct {
	// State holds the evaluator's serialized internal state.
	State json.RawMessage
	// Closed reports that the item session has ended.
	Closed bool
	// Duration is the wall-clock session duration in seconds, stamped by the
	// engine on every mutating action.
	Duration float64
	// BadResponseIdentifiers lists identifiers the evaluator failed to bind.
	BadResponseIdentifiers []string
	// InvalidResponseIdentifiers lists bound identifiers failing validation.
	InvalidResponseIdentifiers []string
}

// IsClosed reports whether the item session has ended.
func (s Snapshot) IsClosed() bool { return s.Closed }

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.State != nil {
		out.State = append(json.RawMessage(nil), s.State...)
	}
	if s.BadResponseIdentifiers != nil {
		out.BadResponseIdentifiers = append([]string(nil), s.BadResponseIdentifiers...)
	}
	if s.InvalidResponseIdentifiers != nil {
		out.InvalidResponseIdentifiers = append([]string(nil), s.InvalidResponseIdentifiers...)
	}
	return out
}

// WithDuration returns a copy of the snapshot with the duration stamped.
func (s Snapshot) WithDuration(seconds float64) Snapshot {
	out := s.Clone()
	out.Duration = seconds
	return out
}
