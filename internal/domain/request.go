package domain

import (
	"encoding/json"

	"github.com/xiaot623/caucus/internal/rules"
)

// CreateSessionRequest represents the request to create a session.
// Rules override the server's rules of procedure for this session only.
type CreateSessionRequest struct {
	Attendees []AttendeeSpec `json:"attendees"`
	Rules     *rules.Rules   `json:"rules,omitempty"`
}

// HumanTurnRequest carries the human's utterance.
type HumanTurnRequest struct {
	Content string `json:"content"`
}

// HumanVoteRequest carries the human's vote.
type HumanVoteRequest struct {
	Choice VoteChoice `json:"choice"`
}

// HumanYieldRequest carries the human's yield target, empty to yield to the chair.
type HumanYieldRequest struct {
	Target string `json:"target,omitempty"`
}

// ChairToolResponse represents the result of a chair tool invocation.
type ChairToolResponse struct {
	Tool   string          `json:"tool"`
	Result json.RawMessage `json:"result,omitempty"`
	State  *SessionState   `json:"state"`
}

// AdvanceResponse represents the result of an advance call.
type AdvanceResponse struct {
	Result AdvanceResult `json:"result"`
	State  *SessionState `json:"state"`
}

// ErrorResponse is the body returned for rejected requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SessionSummary is an entry in a session listing.
type SessionSummary struct {
	SessionID string `json:"session_id"`
	Phase     Phase  `json:"phase"`
	Version   int64  `json:"version"`
	Live      bool   `json:"live"`
	CreatedAt int64  `json:"created_at"`
	ClosedAt  int64  `json:"closed_at,omitempty"`
}

// ToolDescriptor describes a registered chair tool.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
