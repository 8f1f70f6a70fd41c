// Package protocol defines the WebSocket message protocol between clients and the caucus server.
package protocol

import (
	"encoding/json"

	"github.com/xiaot623/caucus/internal/domain"
)

// Message types from client to server
const (
	TypeHello      = "hello"
	TypeAdvance    = "advance"
	TypeHumanTurn  = "human_turn"
	TypeHumanVote  = "human_vote"
	TypeHumanYield = "human_yield"
	TypeGetState   = "get_state"
)

// Message types from server to client
const (
	TypeHelloAck = "hello_ack"
	TypeState    = "state"
	TypeEvent    = "event"
	TypeResult   = "result"
	TypeError    = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// HelloMessage is sent by client to subscribe to a session.
type HelloMessage struct {
	BaseMessage
	AttendeeID string `json:"attendee_id,omitempty"`
}

// HelloAckMessage is sent by the server after a successful hello.
type HelloAckMessage struct {
	BaseMessage
	ConnectionID string `json:"connection_id"`
	AttendeeID   string `json:"attendee_id,omitempty"`
}

// HumanTurnMessage carries the human's utterance.
type HumanTurnMessage struct {
	BaseMessage
	Content string `json:"content"`
}

// HumanVoteMessage carries the human's vote.
type HumanVoteMessage struct {
	BaseMessage
	Choice domain.VoteChoice `json:"choice"`
}

// HumanYieldMessage carries the human's yield target.
type HumanYieldMessage struct {
	BaseMessage
	Target string `json:"target,omitempty"`
}

// StateMessage carries a full session snapshot.
type StateMessage struct {
	BaseMessage
	State *domain.SessionState `json:"state"`
}

// EventMessage is the envelope for a committed notification.
type EventMessage struct {
	BaseMessage
	Event   domain.EventType `json:"event"`
	Seq     int64            `json:"seq"`
	Payload json.RawMessage  `json:"payload,omitempty"`
}

// ResultMessage answers a client request that produced a value.
type ResultMessage struct {
	BaseMessage
	Request string          `json:"request"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// ErrorMessage is sent by the server when an error occurs.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes not covered by domain.ErrorCode
const (
	ErrorCodeInvalidMessage  = "invalid_message"
	ErrorCodeSessionRequired = "session_required"
	ErrorCodeInternalError   = "internal_error"
)

// RawMessage is used for parsing incoming messages before type dispatch.
type RawMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"-"`
}
