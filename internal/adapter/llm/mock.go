package llm

import (
	"context"
	"fmt"

	"github.com/xiaot623/caucus/internal/domain"
)

// MockProducer is a deterministic producer for local runs and tests.
// Delegates support every motion except the ones they proposed themselves,
// on which they abstain.
type MockProducer struct{}

// NewMockProducer creates a new mock producer.
func NewMockProducer() *MockProducer {
	return &MockProducer{}
}

// ProduceTurn returns a canned speech for the current phase.
func (m *MockProducer) ProduceTurn(ctx context.Context, attendeeID string, tc domain.TurnContext) (domain.TurnOutput, error) {
	topic := "the agenda"
	if tc.Resolution != nil && tc.Resolution.Title != "" {
		topic = fmt.Sprintf("%q", tc.Resolution.Title)
	}
	if tc.Motion != nil && tc.Motion.Topic.Description != "" {
		topic = tc.Motion.Topic.Description
	}
	return domain.TurnOutput{
		StrategyNote:  fmt.Sprintf("[MOCK] %s keeps its position on %s.", attendeeID, topic),
		UtteranceText: fmt.Sprintf("[MOCK] The delegation of %s wishes to speak on %s.", attendeeID, topic),
	}, nil
}

// ProduceVote returns YES, or ABSTAIN on the attendee's own motion.
func (m *MockProducer) ProduceVote(ctx context.Context, attendeeID string, tc domain.TurnContext) (domain.VoteChoice, error) {
	if tc.Motion != nil && tc.Motion.Proposer == attendeeID {
		return domain.VoteAbstain, nil
	}
	return domain.VoteYes, nil
}

// Advise returns a canned suggestion.
func (m *MockProducer) Advise(ctx context.Context, attendeeID string, tc domain.TurnContext) (string, error) {
	return fmt.Sprintf("[MOCK] %s could restate its position during %s.", attendeeID, tc.Phase), nil
}
