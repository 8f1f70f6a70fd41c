package domain

import (
	"encoding/json"
	"time"
)

// AttendeeSpec describes an attendee at session creation.
type AttendeeSpec struct {
	ID     string           `json:"id"`
	Human  bool             `json:"human,omitempty"`
	Status AttendanceStatus `json:"status,omitempty"`
}

// AttendeeView is the public projection of an attendee. Strategy notes are never part of it.
type AttendeeView struct {
	ID     string           `json:"id"`
	Status AttendanceStatus `json:"status"`
	Human  bool             `json:"human"`
}

// MotionTopic describes what a motion is about.
type MotionTopic struct {
	Type           MotionType `json:"type"`
	Description    string     `json:"description,omitempty"`
	TotalSeconds   int        `json:"total_seconds,omitempty"`
	SpeakerSeconds int        `json:"speaker_seconds,omitempty"`
	ResolutionID   string     `json:"resolution_id,omitempty"`
	AmendmentID    string     `json:"amendment_id,omitempty"`
}

// Motion is a proposal put to the floor.
type Motion struct {
	ID       string       `json:"id"`
	Proposer string       `json:"proposer,omitempty"`
	Kind     MotionKind   `json:"kind"`
	Topic    MotionTopic  `json:"topic"`
	Status   MotionStatus `json:"status"`
}

// VoteCounts is a tally of one voting round.
type VoteCounts struct {
	Yes     int `json:"YES"`
	No      int `json:"NO"`
	Abstain int `json:"ABSTAIN"`
}

// VoteState is the public view of the open (or last) voting round.
type VoteState struct {
	MotionID string                `json:"motion_id"`
	Round    int                   `json:"round"`
	Open     bool                  `json:"open"`
	Votes    map[string]VoteChoice `json:"votes"`
	Counts   VoteCounts            `json:"counts"`
}

// VoteResult is the outcome of closing a vote.
type VoteResult struct {
	MotionID string     `json:"motion_id"`
	Round    int        `json:"round"`
	Passed   bool       `json:"passed"`
	Counts   VoteCounts `json:"counts"`
}

// ClauseRevision is one entry in a clause's audit trail.
type ClauseRevision struct {
	PriorText   string `json:"prior_text"`
	AmendmentID string `json:"amendment_id,omitempty"`
	Friendly    bool   `json:"friendly"`
}

// Clause is an individually addressable part of a resolution.
type Clause struct {
	ID      string           `json:"id"`
	Kind    ClauseKind       `json:"kind"`
	Text    string           `json:"text"`
	History []ClauseRevision `json:"history,omitempty"`
}

// Resolution is a draft document under debate.
type Resolution struct {
	ID          string           `json:"id"`
	Title       string           `json:"title,omitempty"`
	Sponsors    []string         `json:"sponsors"`
	Signatories []string         `json:"signatories"`
	Clauses     []Clause         `json:"clauses"`
	Status      ResolutionStatus `json:"status"`
}

// Amendment is a proposed change to a clause.
type Amendment struct {
	ID           string          `json:"id"`
	ResolutionID string          `json:"resolution_id"`
	ClauseID     string          `json:"clause_id"`
	Text         string          `json:"text"`
	Friendly     bool            `json:"friendly"`
	MotionID     string          `json:"motion_id,omitempty"`
	Status       AmendmentStatus `json:"status"`
}

// TimerState is the public view of the session timer.
type TimerState struct {
	TotalRemainingMs   int64 `json:"total_remaining_ms"`
	SpeakerRemainingMs int64 `json:"speaker_remaining_ms"`
	PerSpeakerMs       int64 `json:"per_speaker_ms"`
	TotalActive        bool  `json:"total_active"`
	SpeakerActive      bool  `json:"speaker_active"`
	Paused             bool  `json:"paused"`
}

// TranscriptEntry is one produced utterance or procedural record.
type TranscriptEntry struct {
	Seq        int       `json:"seq"`
	AttendeeID string    `json:"attendee_id"`
	Kind       EntryKind `json:"kind"`
	Text       string    `json:"text"`
	Phase      Phase     `json:"phase"`
	At         time.Time `json:"at"`
}

// Awaiting describes what the suspended coordinator waits for.
type Awaiting struct {
	AttendeeID string     `json:"attendee_id"`
	Kind       AwaitKind  `json:"kind"`
	Source     TurnSource `json:"source"`
}

// CoordinatorState is the public view of the turn coordinator.
type CoordinatorState struct {
	Suspended bool      `json:"suspended"`
	Awaiting  *Awaiting `json:"awaiting,omitempty"`
}

// SessionState is the full read-only snapshot of a session.
type SessionState struct {
	SessionID   string            `json:"session_id"`
	Version     int64             `json:"version"`
	Seq         int64             `json:"seq"`
	Phase       Phase             `json:"phase"`
	Attendees   []AttendeeView    `json:"attendees"`
	Queue       []string          `json:"queue"`
	Placards    []string          `json:"placards"`
	Motion      *Motion           `json:"motion,omitempty"`
	Motions     []Motion          `json:"motions"`
	Vote        *VoteState        `json:"vote,omitempty"`
	LastResult  *VoteResult       `json:"last_result,omitempty"`
	Resolutions []Resolution      `json:"resolutions"`
	Amendments  []Amendment       `json:"amendments"`
	Timer       TimerState        `json:"timer"`
	Transcript  []TranscriptEntry `json:"transcript"`
	Coordinator CoordinatorState  `json:"coordinator"`
}

// Hint is the one-way projection of an attendee's private notes offered to its human.
type Hint struct {
	SessionID  string `json:"session_id"`
	AttendeeID string `json:"attendee_id"`
	Text       string `json:"text"`
	NoteCount  int    `json:"note_count"`
}

// TurnContext is what an autonomous participant sees when asked to act.
type TurnContext struct {
	SessionID  string            `json:"session_id"`
	AttendeeID string            `json:"attendee_id"`
	Phase      Phase             `json:"phase"`
	Source     TurnSource        `json:"source"`
	Motion     *Motion           `json:"motion,omitempty"`
	Resolution *Resolution       `json:"resolution,omitempty"`
	Recent     []TranscriptEntry `json:"recent"`
	Notes      []string          `json:"notes,omitempty"`
}

// TurnOutput is what an autonomous participant produced.
type TurnOutput struct {
	StrategyNote  string `json:"strategy_note"`
	UtteranceText string `json:"utterance"`
}

// AdvanceResult reports what a coordinator step did.
type AdvanceResult struct {
	Outcome    AdvanceOutcome   `json:"outcome"`
	AttendeeID string           `json:"attendee_id,omitempty"`
	Source     TurnSource       `json:"source,omitempty"`
	Entry      *TranscriptEntry `json:"entry,omitempty"`
	Awaiting   *Awaiting        `json:"awaiting,omitempty"`
	Warning    string           `json:"warning,omitempty"`
}

// Notification is a committed state change, emitted after every accepted mutation.
type Notification struct {
	Seq     int64     `json:"seq"`
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// Event represents a persisted notification for replay.
type Event struct {
	EventID   string          `json:"event_id"`
	SessionID string          `json:"session_id"`
	Seq       int64           `json:"seq"`
	Ts        int64           `json:"ts"` // Unix milliseconds
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// SessionRecord is the persisted row for a session.
type SessionRecord struct {
	SessionID string          `json:"session_id"`
	Phase     Phase           `json:"phase"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ClosedAt  *time.Time      `json:"closed_at,omitempty"`
	Snapshot  json.RawMessage `json:"snapshot,omitempty"`
}

// VoteRow is a persisted vote, one per attendee per motion round.
type VoteRow struct {
	SessionID  string     `json:"session_id"`
	MotionID   string     `json:"motion_id"`
	Round      int        `json:"round"`
	AttendeeID string     `json:"attendee_id"`
	Choice     VoteChoice `json:"choice"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
