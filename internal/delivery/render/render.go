// Package render resolves what a candidate should currently see.
//
// Rendering itself (markup, templating) is out of scope; this package only
// derives the mode, the snapshot to present and the action affordances from
// the session phase and the most recent event.
package render

import (
	"fmt"

	"github.com/assessly/itemdelivery/internal/delivery/domain"
	"github.com/assessly/itemdelivery/internal/evaluator"
	"github.com/assessly/itemdelivery/internal/platform/errors"
)

// Mode identifies the rendering mode for the current session state.
type Mode int

const (
	// ModePresentation shows the item fresh, after init, reinit or reset.
	ModePresentation Mode = iota + 1
	// ModeAfterAttempt shows feedback while the session is still open.
	ModeAfterAttempt
	// ModeClosedAfterAttempt shows feedback for the attempt that ended the
	// session.
	ModeClosedAfterAttempt
	// ModeClosed shows the ended item without attempt feedback.
	ModeClosed
	// ModeSolution shows the model solution.
	ModeSolution
	// ModePlayback replays an earlier event.
	ModePlayback
	// ModeTerminated shows the exit page. Nothing else is rendered.
	ModeTerminated
)

// String returns the mode name for logs.
func (m Mode) String() string {
	switch m {
	case ModePresentation:
		return "presentation"
	case ModeAfterAttempt:
		return "after_attempt"
	case ModeClosedAfterAttempt:
		return "closed_after_attempt"
	case ModeClosed:
		return "closed"
	case ModeSolution:
		return "solution"
	case ModePlayback:
		return "playback"
	case ModeTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Affordances lists the follow-up actions offered alongside the item.
type Affordances struct {
	Close    bool
	Reinit   bool
	Reset    bool
	Solution bool
	Result   bool
	Source   bool
	Playback bool
}

// View is the resolved description of what to present.
type View struct {
	Mode     Mode
	Snapshot evaluator.Snapshot
	// Duration is the live session duration in seconds at resolution time.
	Duration    float64
	Prompt      string
	AuthorMode  bool
	Affordances Affordances
	// EchoResponses reports that the view should include the response data
	// recorded by the rendered event. In playback mode the flag depends on
	// the replayed event's kind, which Resolve cannot see; the caller sets
	// it after resolving the target.
	EchoResponses bool
	// PlaybackTargetID identifies the replayed event in playback mode.
	PlaybackTargetID string
}

func interactingAffordances(settings domain.Settings) Affordances {
	return Affordances{
		Close:    settings.AllowClose,
		Reinit:   settings.AllowReinitWhenInteracting,
		Reset:    settings.AllowResetWhenInteracting,
		Solution: settings.AllowSolutionWhenInteracting,
		Source:   settings.AllowSource,
	}
}

func closedAffordances(settings domain.Settings) Affordances {
	return Affordances{
		Reinit:   settings.AllowReinitWhenClosed,
		Reset:    settings.AllowResetWhenClosed,
		Solution: settings.AllowSolutionWhenClosed,
		Result:   settings.AllowResult,
		Source:   settings.AllowSource,
		Playback: settings.AllowPlayback,
	}
}

// Resolve derives the view for the session's most recent event. The duration
// argument is the live session duration at resolution time; it, not the
// stamped snapshot duration, is what the candidate sees ticking.
func Resolve(session domain.Session, event domain.Event, settings domain.Settings, duration float64) (View, error) {
	view := View{
		Snapshot:   event.Snapshot,
		Duration:   duration,
		Prompt:     settings.Prompt,
		AuthorMode: settings.AuthorMode,
	}

	if session.Terminated {
		view.Mode = ModeTerminated
		view.Snapshot = evaluator.Snapshot{}
		return view, nil
	}

	if event.Snapshot.IsClosed() {
		view.Affordances = closedAffordances(settings)
		switch event.Kind {
		case domain.KindAttemptValid, domain.KindAttemptInvalid, domain.KindAttemptBad:
			view.Mode = ModeClosedAfterAttempt
			view.EchoResponses = true
		case domain.KindInit, domain.KindReinit, domain.KindReset, domain.KindClose, domain.KindTerminate:
			view.Mode = ModeClosed
		case domain.KindSolution:
			view.Mode = ModeSolution
		case domain.KindPlayback:
			view.Mode = ModePlayback
			view.PlaybackTargetID = event.TargetEventID
		default:
			return View{}, errors.Logic(fmt.Sprintf("unexpected closed event kind %q", event.Kind))
		}
		return view, nil
	}

	view.Affordances = interactingAffordances(settings)
	switch event.Kind {
	case domain.KindInit, domain.KindReinit, domain.KindReset:
		view.Mode = ModePresentation
	case domain.KindAttemptValid, domain.KindAttemptInvalid, domain.KindAttemptBad:
		view.Mode = ModeAfterAttempt
		view.EchoResponses = true
	default:
		return View{}, errors.Logic(fmt.Sprintf("unexpected interacting event kind %q", event.Kind))
	}
	return view, nil
}
