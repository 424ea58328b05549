// Package guard provides pure privilege decisions for candidate actions.
//
// The guard never mutates state and never returns control-flow errors;
// callers branch on the returned decision and map denials to their boundary.
package guard

import (
	"crypto/subtle"

	"github.com/assessly/itemdelivery/internal/delivery/domain"
	"github.com/assessly/itemdelivery/internal/platform/errors"
)

// Action enumerates the candidate actions subject to privilege checks.
type Action int

const (
	// ActionAttempt submits candidate responses.
	ActionAttempt Action = iota + 1
	// ActionClose ends the item session by candidate choice.
	ActionClose
	// ActionReinit reruns template processing from scratch.
	ActionReinit
	// ActionReset restores the most recent reinit (or init) snapshot.
	ActionReset
	// ActionSolution requests the model solution.
	ActionSolution
	// ActionPlayback replays an earlier event.
	ActionPlayback
	// ActionTerminate permanently ends the session.
	ActionTerminate
	// ActionViewResult requests the computed result document.
	ActionViewResult
	// ActionViewSource requests the item source.
	ActionViewSource
)

// Decision is the outcome of a privilege check.
type Decision struct {
	Allowed bool
	// Denied names the denial reason code when Allowed is false.
	Denied errors.Code
}

func allow() Decision { return Decision{Allowed: true} }

func deny(code errors.Code) Decision { return Decision{Denied: code} }

// CheckToken verifies the presented session token in constant time.
func CheckToken(session domain.Session, token string) Decision {
	if subtle.ConstantTimeCompare([]byte(session.Token), []byte(token)) != 1 {
		return deny(errors.CodeAccessCandidateSession)
	}
	return allow()
}

// Authorize decides whether the action is permitted in the current phase
// under the delivery settings. Every denial maps to one named reason code.
func Authorize(action Action, phase domain.Phase, settings domain.Settings) Decision {
	// Termination is absorbing: it blocks every action including itself.
	if phase == domain.PhaseTerminated {
		return deny(errors.CodeAccessTerminatedSession)
	}

	switch action {
	case ActionAttempt:
		if phase != domain.PhaseInteracting {
			return deny(errors.CodeMakeAttempt)
		}
		return allow()

	case ActionClose:
		if phase == domain.PhaseClosed {
			return deny(errors.CodeCloseSessionWhenClosed)
		}
		if !settings.AllowClose {
			return deny(errors.CodeCloseSessionWhenInteracting)
		}
		return allow()

	case ActionReinit:
		if phase == domain.PhaseInteracting && !settings.AllowReinitWhenInteracting {
			return deny(errors.CodeReinitSessionWhenInteracting)
		}
		if phase == domain.PhaseClosed && !settings.AllowReinitWhenClosed {
			return deny(errors.CodeReinitSessionWhenClosed)
		}
		return allow()

	case ActionReset:
		if phase == domain.PhaseInteracting && !settings.AllowResetWhenInteracting {
			return deny(errors.CodeResetSessionWhenInteracting)
		}
		if phase == domain.PhaseClosed && !settings.AllowResetWhenClosed {
			return deny(errors.CodeResetSessionWhenClosed)
		}
		return allow()

	case ActionSolution:
		if phase == domain.PhaseInteracting && !settings.AllowSolutionWhenInteracting {
			return deny(errors.CodeSolutionWhenInteracting)
		}
		if phase == domain.PhaseClosed && !settings.AllowSolutionWhenClosed {
			return deny(errors.CodeSolutionWhenClosed)
		}
		return allow()

	case ActionPlayback:
		if phase != domain.PhaseClosed {
			return deny(errors.CodePlaybackWhenInteracting)
		}
		if !settings.AllowPlayback {
			return deny(errors.CodePlayback)
		}
		return allow()

	case ActionTerminate:
		return allow()

	case ActionViewResult:
		if !settings.AllowResult {
			return deny(errors.CodeViewAssessmentResult)
		}
		return allow()

	case ActionViewSource:
		if !settings.AllowSource {
			return deny(errors.CodeViewAssessmentSource)
		}
		return allow()

	default:
		return deny(errors.CodeLogicViolation)
	}
}

// CheckPlaybackTarget verifies a playback target's eligibility: it must
// belong to the session, share the item category and be playback-capable.
func CheckPlaybackTarget(sessionID string, target domain.Event) Decision {
	if target.SessionID != sessionID {
		return deny(errors.CodePlaybackOtherSession)
	}
	if target.Category != domain.CategoryItem || !target.Kind.PlaybackCapable() {
		return deny(errors.CodePlaybackEvent)
	}
	return allow()
}
