package domain

// PhaseChangedPayload is the payload for phase_changed events.
type PhaseChangedPayload struct {
	From    Phase      `json:"from"`
	To      Phase      `json:"to"`
	Trigger string     `json:"trigger"`
	Timer   TimerState `json:"timer"`
}

// TimerChangedPayload is the payload for timer_changed events.
type TimerChangedPayload struct {
	Reason string     `json:"reason"`
	Timer  TimerState `json:"timer"`
}

// QueueChangedPayload is the payload for queue_changed events.
type QueueChangedPayload struct {
	Change     string   `json:"change"`
	AttendeeID string   `json:"attendee_id,omitempty"`
	Queue      []string `json:"queue"`
	Placards   []string `json:"placards"`
}

// MotionChangedPayload is the payload for motion_changed events.
type MotionChangedPayload struct {
	Change string      `json:"change"`
	Motion Motion      `json:"motion"`
	Vote   *VoteState  `json:"vote,omitempty"`
	Result *VoteResult `json:"result,omitempty"`
}

// DocumentChangedPayload is the payload for document_changed events.
type DocumentChangedPayload struct {
	Change     string     `json:"change"`
	ClauseID   string     `json:"clause_id,omitempty"`
	Amendment  *Amendment `json:"amendment,omitempty"`
	Resolution Resolution `json:"resolution"`
}

// VoteRecordedPayload is the payload for vote_recorded events.
type VoteRecordedPayload struct {
	MotionID   string     `json:"motion_id"`
	Round      int        `json:"round"`
	AttendeeID string     `json:"attendee_id"`
	Choice     VoteChoice `json:"choice,omitempty"`
	Counts     VoteCounts `json:"counts"`

	// Retracted marks a vote struck from the round because its attendee lost voting rights.
	Retracted bool `json:"retracted,omitempty"`
}

// AttendanceChangedPayload is the payload for attendance_changed events.
type AttendanceChangedPayload struct {
	AttendeeID string           `json:"attendee_id"`
	Status     AttendanceStatus `json:"status"`
}

// TranscriptAppendedPayload is the payload for transcript_appended events.
type TranscriptAppendedPayload struct {
	Entry TranscriptEntry `json:"entry"`
}

// CoordinatorChangedPayload is the payload for coordinator_changed events.
type CoordinatorChangedPayload struct {
	Coordinator CoordinatorState `json:"coordinator"`
}

// WarningPayload is the payload for warning events.
type WarningPayload struct {
	Code       string `json:"code"`
	AttendeeID string `json:"attendee_id,omitempty"`
	Message    string `json:"message"`
}
