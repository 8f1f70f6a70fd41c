// Package domain defines the core domain models for the deliberation engine.
package domain

// Phase is the procedural phase of a session.
type Phase string

const (
	PhaseRollCall Phase = "ROLL_CALL"
	PhaseGSL      Phase = "GSL"
	PhaseMod      Phase = "MOD"
	PhaseUnmod    Phase = "UNMOD"
	PhaseVoting   Phase = "VOTING"
)

// AttendanceStatus represents roll-call status of an attendee.
type AttendanceStatus string

const (
	AttendancePresent          AttendanceStatus = "PRESENT"
	AttendancePresentAndVoting AttendanceStatus = "PRESENT_AND_VOTING"
	AttendanceAbsent           AttendanceStatus = "ABSENT"
)

// Valid reports whether s is a known attendance status.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendancePresentAndVoting, AttendanceAbsent:
		return true
	}
	return false
}

// MotionKind represents whether a motion is procedural or substantive.
type MotionKind string

const (
	MotionKindProcedural  MotionKind = "PROCEDURAL"
	MotionKindSubstantive MotionKind = "SUBSTANTIVE"
)

// MotionType is what a motion does when it passes.
type MotionType string

const (
	MotionTypeModeratedCaucus   MotionType = "moderated_caucus"
	MotionTypeUnmoderatedCaucus MotionType = "unmoderated_caucus"
	MotionTypeGeneral           MotionType = "general"
	MotionTypeAmendment         MotionType = "amendment"
	MotionTypeResolutionVote    MotionType = "resolution_vote"
)

// MotionStatus represents the lifecycle of a motion.
type MotionStatus string

const (
	MotionStatusPending MotionStatus = "PENDING"
	MotionStatusActive  MotionStatus = "ACTIVE"
	MotionStatusPassed  MotionStatus = "PASSED"
	MotionStatusFailed  MotionStatus = "FAILED"
)

// Terminal reports whether the motion can no longer change.
func (s MotionStatus) Terminal() bool {
	return s == MotionStatusPassed || s == MotionStatusFailed
}

// VoteChoice is a single attendee's vote.
type VoteChoice string

const (
	VoteYes     VoteChoice = "YES"
	VoteNo      VoteChoice = "NO"
	VoteAbstain VoteChoice = "ABSTAIN"
)

// Valid reports whether c is a known vote choice.
func (c VoteChoice) Valid() bool {
	switch c {
	case VoteYes, VoteNo, VoteAbstain:
		return true
	}
	return false
}

// ClauseKind distinguishes preambulatory from operative clauses.
type ClauseKind string

const (
	ClauseKindPreambulatory ClauseKind = "PREAMBULATORY"
	ClauseKindOperative     ClauseKind = "OPERATIVE"
)

// ResolutionStatus represents the outcome of a resolution.
type ResolutionStatus string

const (
	ResolutionStatusDraft  ResolutionStatus = "DRAFT"
	ResolutionStatusPassed ResolutionStatus = "PASSED"
	ResolutionStatusFailed ResolutionStatus = "FAILED"
)

// AmendmentStatus represents the lifecycle of an amendment.
type AmendmentStatus string

const (
	AmendmentStatusPending  AmendmentStatus = "PENDING"
	AmendmentStatusApplied  AmendmentStatus = "APPLIED"
	AmendmentStatusRejected AmendmentStatus = "REJECTED"
)

// Expiry is a timer expiry signal.
type Expiry string

const (
	ExpiryTotal   Expiry = "TOTAL_EXPIRED"
	ExpirySpeaker Expiry = "SPEAKER_EXPIRED"
)

// TurnSource records why an actor was chosen.
type TurnSource string

const (
	TurnSourcePlacard TurnSource = "placard"
	TurnSourceQueue   TurnSource = "queue"
	TurnSourceVote    TurnSource = "vote"
)

// AwaitKind is what the suspended coordinator waits for.
type AwaitKind string

const (
	AwaitTurn AwaitKind = "turn"
	AwaitVote AwaitKind = "vote"
)

// EntryKind classifies transcript entries.
type EntryKind string

const (
	EntryKindSpeech       EntryKind = "speech"
	EntryKindPass         EntryKind = "pass"
	EntryKindYield        EntryKind = "yield"
	EntryKindAnnouncement EntryKind = "announcement"
)

// AdvanceOutcome summarises what a coordinator step did.
type AdvanceOutcome string

const (
	AdvanceSpoke     AdvanceOutcome = "spoke"
	AdvanceVoted     AdvanceOutcome = "voted"
	AdvanceSuspended AdvanceOutcome = "suspended"
	AdvanceIdle      AdvanceOutcome = "idle"
)

// EventType represents the type of a notification.
type EventType string

const (
	EventTypePhaseChanged       EventType = "phase_changed"
	EventTypeTimerChanged       EventType = "timer_changed"
	EventTypeQueueChanged       EventType = "queue_changed"
	EventTypeMotionChanged      EventType = "motion_changed"
	EventTypeDocumentChanged    EventType = "document_changed"
	EventTypeVoteRecorded       EventType = "vote_recorded"
	EventTypeAttendanceChanged  EventType = "attendance_changed"
	EventTypeTranscriptAppended EventType = "transcript_appended"
	EventTypeCoordinatorChanged EventType = "coordinator_changed"
	EventTypeWarning            EventType = "warning"
)
