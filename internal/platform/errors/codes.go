// Package errors provides structured error handling for the delivery engine.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Guard denials, one per privilege check.
	CodeAccessCandidateSession       Code = "ACCESS_CANDIDATE_SESSION"
	CodeAccessTerminatedSession      Code = "ACCESS_TERMINATED_SESSION"
	CodeMakeAttempt                  Code = "MAKE_ATTEMPT"
	CodeCloseSessionWhenClosed       Code = "CLOSE_SESSION_WHEN_CLOSED"
	CodeCloseSessionWhenInteracting  Code = "CLOSE_SESSION_WHEN_INTERACTING"
	CodeReinitSessionWhenInteracting Code = "REINIT_SESSION_WHEN_INTERACTING"
	CodeReinitSessionWhenClosed      Code = "REINIT_SESSION_WHEN_CLOSED"
	CodeResetSessionWhenInteracting  Code = "RESET_SESSION_WHEN_INTERACTING"
	CodeResetSessionWhenClosed       Code = "RESET_SESSION_WHEN_CLOSED"
	CodeSolutionWhenInteracting      Code = "SOLUTION_WHEN_INTERACTING"
	CodeSolutionWhenClosed           Code = "SOLUTION_WHEN_CLOSED"
	CodePlaybackWhenInteracting      Code = "PLAYBACK_WHEN_INTERACTING"
	CodePlayback                     Code = "PLAYBACK"
	CodePlaybackOtherSession         Code = "PLAYBACK_OTHER_SESSION"
	CodePlaybackEvent                Code = "PLAYBACK_EVENT"
	CodeViewAssessmentResult         Code = "VIEW_ASSESSMENT_RESULT"
	CodeViewAssessmentSource         Code = "VIEW_ASSESSMENT_SOURCE"

	// Lookup failures.
	CodeNotFound Code = "NOT_FOUND"

	// Internal failures.
	CodeLogicViolation   Code = "LOGIC_VIOLATION"
	CodeEvaluatorFailure Code = "EVALUATOR_FAILURE"
)

// forbiddenCodes enumerates every guard denial code.
var forbiddenCodes = map[Code]struct{}{
	CodeAccessCandidateSession:       {},
	CodeAccessTerminatedSession:      {},
	CodeMakeAttempt:                  {},
	CodeCloseSessionWhenClosed:       {},
	CodeCloseSessionWhenInteracting:  {},
	CodeReinitSessionWhenInteracting: {},
	CodeReinitSessionWhenClosed:      {},
	CodeResetSessionWhenInteracting:  {},
	CodeResetSessionWhenClosed:       {},
	CodeSolutionWhenInteracting:      {},
	CodeSolutionWhenClosed:           {},
	CodePlaybackWhenInteracting:      {},
	CodePlayback:                     {},
	CodePlaybackOtherSession:         {},
	CodePlaybackEvent:                {},
	CodeViewAssessmentResult:         {},
	CodeViewAssessmentSource:         {},
}

// IsForbiddenCode reports whether the code names a guard denial.
func IsForbiddenCode(code Code) bool {
	_, ok := forbiddenCodes[code]
	return ok
}
