// Package agentclient drives autonomous attendees hosted by an external agent service.
// The service answers each request with a server-sent event stream.
package agentclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xiaot623/caucus/internal/domain"
)

// Request kinds.
const (
	KindTurn   = "turn"
	KindVote   = "vote"
	KindAdvise = "advise"
)

// SSE event names.
const (
	EventNote  = "note"
	EventDelta = "delta"
	EventDone  = "done"
	EventError = "error"
)

// InvokeRequest is posted to the agent endpoint.
type InvokeRequest struct {
	AttendeeID string             `json:"attendee_id"`
	SessionID  string             `json:"session_id"`
	Kind       string             `json:"kind"`
	Context    domain.TurnContext `json:"context"`
}

// SSEEvent is one server-sent event.
type SSEEvent struct {
	Event string
	Data  string
}

// TextEvent is the payload of note and delta events.
type TextEvent struct {
	Text string `json:"text"`
}

// DoneEvent closes a stream. Fields left empty fall back to what the stream accumulated.
type DoneEvent struct {
	Utterance    string            `json:"utterance,omitempty"`
	StrategyNote string            `json:"strategy_note,omitempty"`
	Vote         domain.VoteChoice `json:"vote,omitempty"`
}

// ErrorEvent reports a failure on the agent side.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client is the HTTP/SSE producer.
type Client struct {
	httpClient *http.Client
	endpoint   string
	timeout    time.Duration
}

// NewClient creates a new agent client. Every call is bounded by timeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{},
		endpoint:   strings.TrimRight(endpoint, "/"),
		timeout:    timeout,
	}
}

// Invoke posts req and calls onEvent for each event of the response stream.
func (c *Client) Invoke(ctx context.Context, req *InvokeRequest, onEvent func(SSEEvent) error) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/invoke", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-Session-ID", req.SessionID)
	httpReq.Header.Set("X-Attendee-ID", req.AttendeeID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("agent returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return c.parseSSE(resp.Body, onEvent)
}

// parseSSE parses a server-sent event stream.
func (c *Client) parseSSE(r io.Reader, onEvent func(SSEEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var event string
	var data []string
	flush := func() error {
		if event == "" && len(data) == 0 {
			return nil
		}
		evt := SSEEvent{Event: event, Data: strings.Join(data, "\n")}
		if evt.Event == "" {
			evt.Event = "message"
		}
		event, data = "", nil
		return onEvent(evt)
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
			// comment
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read event stream: %w", err)
	}
	return flush()
}

// ParseTextEvent parses a note or delta event payload.
func ParseTextEvent(data string) (*TextEvent, error) {
	var evt TextEvent
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}

// ParseDoneEvent parses a done event payload.
func ParseDoneEvent(data string) (*DoneEvent, error) {
	var evt DoneEvent
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}

// ParseErrorEvent parses an error event payload.
func ParseErrorEvent(data string) (*ErrorEvent, error) {
	var evt ErrorEvent
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}

// stream is what one invocation produced.
type stream struct {
	note      strings.Builder
	utterance strings.Builder
	done      *DoneEvent
}

func (c *Client) collect(ctx context.Context, kind, attendeeID string, tc domain.TurnContext) (*stream, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out := &stream{}
	req := &InvokeRequest{AttendeeID: attendeeID, SessionID: tc.SessionID, Kind: kind, Context: tc}
	err := c.Invoke(ctx, req, func(evt SSEEvent) error {
		switch evt.Event {
		case EventNote:
			t, err := ParseTextEvent(evt.Data)
			if err != nil {
				return fmt.Errorf("invalid note event: %w", err)
			}
			out.note.WriteString(t.Text)
		case EventDelta:
			t, err := ParseTextEvent(evt.Data)
			if err != nil {
				return fmt.Errorf("invalid delta event: %w", err)
			}
			out.utterance.WriteString(t.Text)
		case EventDone:
			d, err := ParseDoneEvent(evt.Data)
			if err != nil {
				return fmt.Errorf("invalid done event: %w", err)
			}
			out.done = d
		case EventError:
			e, err := ParseErrorEvent(evt.Data)
			if err != nil {
				return fmt.Errorf("invalid error event: %w", err)
			}
			return fmt.Errorf("agent error %s: %s", e.Code, e.Message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.done == nil {
		return nil, fmt.Errorf("agent stream ended without done event")
	}
	return out, nil
}

// ProduceTurn asks the agent to speak for attendeeID.
func (c *Client) ProduceTurn(ctx context.Context, attendeeID string, tc domain.TurnContext) (domain.TurnOutput, error) {
	s, err := c.collect(ctx, KindTurn, attendeeID, tc)
	if err != nil {
		return domain.TurnOutput{}, err
	}
	out := domain.TurnOutput{StrategyNote: s.note.String(), UtteranceText: s.utterance.String()}
	if s.done.Utterance != "" {
		out.UtteranceText = s.done.Utterance
	}
	if s.done.StrategyNote != "" {
		out.StrategyNote = s.done.StrategyNote
	}
	return out, nil
}

// ProduceVote asks the agent how attendeeID votes.
func (c *Client) ProduceVote(ctx context.Context, attendeeID string, tc domain.TurnContext) (domain.VoteChoice, error) {
	s, err := c.collect(ctx, KindVote, attendeeID, tc)
	if err != nil {
		return "", err
	}
	choice := domain.VoteChoice(strings.ToUpper(strings.TrimSpace(string(s.done.Vote))))
	if !choice.Valid() {
		return "", fmt.Errorf("agent returned invalid vote %q", s.done.Vote)
	}
	return choice, nil
}

// Advise asks the agent for a strategy note addressed to the human.
func (c *Client) Advise(ctx context.Context, attendeeID string, tc domain.TurnContext) (string, error) {
	s, err := c.collect(ctx, KindAdvise, attendeeID, tc)
	if err != nil {
		return "", err
	}
	if s.done.StrategyNote != "" {
		return s.done.StrategyNote, nil
	}
	return s.note.String(), nil
}
