// Package audit records candidate activity for operators.
//
// Audit records are structured log lines, not persisted domain state; a lost
// record never fails the candidate's action.
package audit

import (
	"github.com/rs/zerolog"

	"github.com/assessly/itemdelivery/internal/delivery/domain"
	"github.com/assessly/itemdelivery/internal/platform/errors"
	"github.com/assessly/itemdelivery/internal/platform/log"
)

// Recorder writes candidate audit records.
type Recorder struct {
	logger zerolog.Logger
}

// NewRecorder returns a recorder writing through the configured base logger.
func NewRecorder() *Recorder {
	return &Recorder{logger: log.WithComponent("audit")}
}

// Action records one appended candidate event.
func (r *Recorder) Action(sessionID string, event domain.Event) {
	if r == nil {
		return
	}
	r.logger.Info().
		Str("session_id", sessionID).
		Str("event_id", event.ID).
		Str("kind", string(event.Kind)).
		Uint64("seq", event.Seq).
		Float64("duration_s", event.Snapshot.Duration).
		Msg("candidate action")
}

// Denial records one refused candidate action.
func (r *Recorder) Denial(sessionID string, action string, code errors.Code) {
	if r == nil {
		return
	}
	r.logger.Warn().
		Str("session_id", sessionID).
		Str("action", action).
		Str("code", string(code)).
		Msg("candidate action denied")
}

// Access records one read of a protected resource (result or source).
func (r *Recorder) Access(sessionID string, resource string) {
	if r == nil {
		return
	}
	r.logger.Info().
		Str("session_id", sessionID).
		Str("resource", resource).
		Msg("candidate access")
}
