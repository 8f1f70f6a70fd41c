package service

import (
	"context"

	"github.com/xiaot623/caucus/internal/domain"
	"github.com/xiaot623/caucus/internal/engine"
)

// Advance runs one coordinator step.
func (s *Service) Advance(ctx context.Context, sessionID string) (*domain.AdvanceResponse, error) {
	var result domain.AdvanceResult
	snap, err := s.apply(ctx, sessionID, func(eng *engine.Engine) error {
		var err error
		result, err = eng.Advance(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if result.Warning != "" {
		s.logger.Warn("actor production failed", "session_id", sessionID, "attendee_id", result.AttendeeID, "warning", result.Warning)
	}
	return &domain.AdvanceResponse{Result: result, State: snap}, nil
}

// SubmitHumanTurn delivers the human's utterance and resumes the coordinator.
func (s *Service) SubmitHumanTurn(ctx context.Context, sessionID string, req domain.HumanTurnRequest) (*domain.SessionState, error) {
	return s.apply(ctx, sessionID, func(eng *engine.Engine) error {
		_, err := eng.SubmitHumanTurn(req.Content)
		return err
	})
}

// SubmitHumanVote records the human's vote.
func (s *Service) SubmitHumanVote(ctx context.Context, sessionID string, req domain.HumanVoteRequest) (*domain.SessionState, error) {
	return s.apply(ctx, sessionID, func(eng *engine.Engine) error {
		return eng.SubmitHumanVote(req.Choice)
	})
}

// SubmitHumanYield ends the human's turn, optionally recognising another attendee.
func (s *Service) SubmitHumanYield(ctx context.Context, sessionID string, req domain.HumanYieldRequest) (*domain.SessionState, error) {
	return s.apply(ctx, sessionID, func(eng *engine.Engine) error {
		_, err := eng.SubmitHumanYield(req.Target)
		return err
	})
}
