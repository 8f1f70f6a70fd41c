package domain

import "errors"

// Procedural validation failures. Rejected operations never change session state.
var (
	ErrIllegalTransition     = errors.New("illegal transition")
	ErrConflictingMotion     = errors.New("conflicting motion")
	ErrInvalidVoter          = errors.New("invalid voter")
	ErrWrongPhase            = errors.New("wrong phase")
	ErrSessionSuspended      = errors.New("session suspended")
	ErrInvalidTimerOperation = errors.New("invalid timer operation")
	ErrAmendmentRequiresVote = errors.New("amendment requires vote")
	ErrUnknownAttendee       = errors.New("unknown attendee")
	ErrActorProductionFailed = errors.New("actor production failed")
	ErrSessionNotFound       = errors.New("session not found")
	ErrNotSuspended          = errors.New("session is not waiting for human input")
	ErrUnexpectedSubmission  = errors.New("unexpected human submission")
	ErrQueueMismatch         = errors.New("reorder must keep queue membership")
	ErrUnknownMotion         = errors.New("unknown motion")
	ErrUnknownResolution     = errors.New("unknown resolution")
	ErrUnknownClause         = errors.New("unknown clause")
	ErrUnknownAmendment      = errors.New("unknown amendment")
	ErrNoOpenVote            = errors.New("no open vote")
	ErrAttendeeAbsent        = errors.New("attendee is absent")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrUnknownTool           = errors.New("unknown chair tool")
	ErrToolBlocked           = errors.New("chair tool blocked by policy")
	ErrHintForbidden         = errors.New("hint is only available to the attendee's own human")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrIllegalTransition, "illegal_transition"},
	{ErrConflictingMotion, "conflicting_motion"},
	{ErrInvalidVoter, "invalid_voter"},
	{ErrWrongPhase, "wrong_phase"},
	{ErrSessionSuspended, "session_suspended"},
	{ErrInvalidTimerOperation, "invalid_timer_operation"},
	{ErrAmendmentRequiresVote, "amendment_requires_vote"},
	{ErrUnknownAttendee, "unknown_attendee"},
	{ErrActorProductionFailed, "actor_production_failed"},
	{ErrSessionNotFound, "session_not_found"},
	{ErrNotSuspended, "not_suspended"},
	{ErrUnexpectedSubmission, "unexpected_submission"},
	{ErrQueueMismatch, "queue_mismatch"},
	{ErrUnknownMotion, "unknown_motion"},
	{ErrUnknownResolution, "unknown_resolution"},
	{ErrUnknownClause, "unknown_clause"},
	{ErrUnknownAmendment, "unknown_amendment"},
	{ErrNoOpenVote, "no_open_vote"},
	{ErrAttendeeAbsent, "attendee_absent"},
	{ErrInvalidArgument, "invalid_argument"},
	{ErrUnknownTool, "unknown_tool"},
	{ErrToolBlocked, "blocked"},
	{ErrHintForbidden, "hint_forbidden"},
}

// ErrorCode returns a stable code for err, or "internal" when err is not a domain error.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}
