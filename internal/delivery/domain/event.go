package domain

import (
	"time"

	"github.com/assessly/itemdelivery/internal/evaluator"
)

// Category partitions a session's event log.
type Category string

// CategoryItem is the category for standalone item delivery events.
const CategoryItem Category = "ITEM"

// EventKind identifies the kind of a candidate event.
type EventKind string

const (
	// KindInit records the initial template processing run.
	KindInit EventKind = "INIT"
	// KindAttemptValid records an attempt whose responses all bound and
	// validated; outcome processing ran.
	KindAttemptValid EventKind = "ATTEMPT_VALID"
	// KindAttemptInvalid records an attempt with bound but invalid responses.
	KindAttemptInvalid EventKind = "ATTEMPT_INVALID"
	// KindAttemptBad records an attempt with unbindable responses.
	KindAttemptBad EventKind = "ATTEMPT_BAD"
	// KindClose records the candidate closing the session.
	KindClose EventKind = "CLOSE"
	// KindReinit records a rerun of template processing from scratch.
	KindReinit EventKind = "REINIT"
	// KindReset records a restore of the most recent reinit (or original
	// init) snapshot.
	KindReset EventKind = "RESET"
	// KindSolution records a solution request.
	KindSolution EventKind = "SOLUTION"
	// KindPlayback records a replay of an earlier event. It carries the
	// session's current snapshot plus a reference to the target event and
	// never changes current state.
	KindPlayback EventKind = "PLAYBACK"
	// KindTerminate records the absorbing termination of the session.
	KindTerminate EventKind = "TERMINATE"
)

// IsValid reports whether the event kind is supported.
func (k EventKind) IsValid() bool {
	switch k {
	case KindInit, KindAttemptValid, KindAttemptInvalid, KindAttemptBad,
		KindClose, KindReinit, KindReset, KindSolution, KindPlayback, KindTerminate:
		return true
	default:
		return false
	}
}

// IsAttempt reports whether the kind records a response submission.
func (k EventKind) IsAttempt() bool {
	return k == KindAttemptValid || k == KindAttemptInvalid || k == KindAttemptBad
}

// PlaybackCapable reports whether an event of this kind may be replayed.
// CLOSE, SOLUTION, PLAYBACK and TERMINATE events are not replayable.
func (k EventKind) PlaybackCapable() bool {
	switch k {
	case KindInit, KindReinit, KindReset, KindAttemptValid, KindAttemptInvalid, KindAttemptBad:
		return true
	default:
		return false
	}
}

// Event is one immutable, appended record of a candidate action and the
// resulting state snapshot.
type Event struct {
	// ID uniquely identifies the event.
	ID string
	// SessionID is the owning session.
	SessionID string
	// Seq is the event sequence number within the session (starts at 1).
	// Assigned by storage on append.
	Seq uint64
	// Category partitions the session's log.
	Category Category
	// Kind identifies the recorded action.
	Kind EventKind
	// Timestamp is when the event was recorded.
	Timestamp time.Time
	// Snapshot is the captured item state resulting from the action.
	Snapshot evaluator.Snapshot
	// TargetEventID references the event being replayed. Set only for
	// PLAYBACK events.
	TargetEventID string
}
