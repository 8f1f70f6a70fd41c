// Package llm drives autonomous attendees with chat-completion models.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xiaot623/caucus/internal/domain"
)

// Completer sends one system+user exchange to a model and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Producer adapts a Completer to the engine's producer and advisor interfaces.
type Producer struct {
	completer Completer
	timeout   time.Duration
}

// NewProducer wraps c. Every call is bounded by timeout.
func NewProducer(c Completer, timeout time.Duration) *Producer {
	return &Producer{completer: c, timeout: timeout}
}

const systemPrompt = `You are the delegate of %s in a committee debate run under parliamentary procedure.
Stay in character, be concise and diplomatic. Reply with a single JSON object and nothing else.`

// ProduceTurn asks the model for a strategy note and a public utterance.
func (p *Producer) ProduceTurn(ctx context.Context, attendeeID string, tc domain.TurnContext) (domain.TurnOutput, error) {
	reply, err := p.complete(ctx, attendeeID, tc,
		`Deliver your next speech. Answer as {"strategy_note": "<private reasoning for your delegation>", "utterance": "<what you say aloud>"}.`)
	if err != nil {
		return domain.TurnOutput{}, err
	}
	var out domain.TurnOutput
	if err := decodeReply(reply, &out); err != nil {
		return domain.TurnOutput{}, err
	}
	if strings.TrimSpace(out.UtteranceText) == "" {
		return domain.TurnOutput{}, fmt.Errorf("model reply has no utterance")
	}
	return out, nil
}

// ProduceVote asks the model how the delegation votes.
func (p *Producer) ProduceVote(ctx context.Context, attendeeID string, tc domain.TurnContext) (domain.VoteChoice, error) {
	reply, err := p.complete(ctx, attendeeID, tc,
		`Vote on the motion on the floor. Answer as {"vote": "YES" | "NO" | "ABSTAIN"}.`)
	if err != nil {
		return "", err
	}
	var out struct {
		Vote string `json:"vote"`
	}
	if err := decodeReply(reply, &out); err != nil {
		return "", err
	}
	choice := domain.VoteChoice(strings.ToUpper(strings.TrimSpace(out.Vote)))
	if !choice.Valid() {
		return "", fmt.Errorf("model returned invalid vote %q", out.Vote)
	}
	return choice, nil
}

// Advise asks the model for a private suggestion to the delegation's human.
func (p *Producer) Advise(ctx context.Context, attendeeID string, tc domain.TurnContext) (string, error) {
	reply, err := p.complete(ctx, attendeeID, tc,
		`Your human principal holds the floor. Suggest what they should say. Answer as {"strategy_note": "<suggestion>"}.`)
	if err != nil {
		return "", err
	}
	var out struct {
		StrategyNote string `json:"strategy_note"`
	}
	if err := decodeReply(reply, &out); err != nil {
		return "", err
	}
	return out.StrategyNote, nil
}

func (p *Producer) complete(ctx context.Context, attendeeID string, tc domain.TurnContext, instruction string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	user, err := buildPrompt(tc, instruction)
	if err != nil {
		return "", err
	}
	return p.completer.Complete(ctx, fmt.Sprintf(systemPrompt, attendeeID), user)
}

func buildPrompt(tc domain.TurnContext, instruction string) (string, error) {
	state, err := json.MarshalIndent(tc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal turn context: %w", err)
	}
	var b strings.Builder
	b.WriteString("Current state of the debate:\n")
	b.Write(state)
	b.WriteString("\n\n")
	b.WriteString(instruction)
	return b.String(), nil
}

// decodeReply extracts the JSON object from a model reply, tolerating code fences and chatter.
func decodeReply(reply string, v any) error {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return fmt.Errorf("model reply is not JSON: %q", truncate(reply, 100))
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), v); err != nil {
		return fmt.Errorf("model reply is malformed: %w", err)
	}
	return nil
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
