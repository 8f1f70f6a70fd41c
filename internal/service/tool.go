package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xiaot623/caucus/internal/domain"
	"github.com/xiaot623/caucus/internal/engine"
	"github.com/xiaot623/caucus/policy"
)

// InvokeChairTool runs a chair tool against a session after the policy allows it.
func (s *Service) InvokeChairTool(ctx context.Context, sessionID, toolName string, args json.RawMessage) (*domain.ChairToolResponse, error) {
	// 1. Tool must exist
	if !s.tools.Has(toolName) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownTool, toolName)
	}

	var argsMap map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argsMap); err != nil {
			return nil, fmt.Errorf("%w: args must be a JSON object: %v", domain.ErrInvalidArgument, err)
		}
	}

	var result json.RawMessage
	snap, err := s.apply(ctx, sessionID, func(eng *engine.Engine) error {
		// 2. Policy check via OPA, against the state the tool will run on
		if err := s.checkPolicy(ctx, eng, toolName, argsMap); err != nil {
			return err
		}
		// 3. Execute
		var err error
		result, err = s.tools.Execute(ctx, eng, toolName, args)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("chair tool executed", "session_id", sessionID, "tool", toolName, "version", snap.Version)
	return &domain.ChairToolResponse{Tool: toolName, Result: result, State: snap}, nil
}

func (s *Service) checkPolicy(ctx context.Context, eng *engine.Engine, toolName string, args map[string]any) error {
	if s.policyEngine == nil {
		return nil
	}
	decision, reason, err := s.policyEngine.Evaluate(ctx, policy.Input{
		ToolName:  toolName,
		Args:      args,
		SessionID: eng.ID(),
		Phase:     string(eng.Phase()),
		Suspended: eng.Suspended(),
	})
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	if decision == policy.DecisionBlock {
		s.logger.Info("chair tool blocked", "session_id", eng.ID(), "tool", toolName, "reason", reason)
		return fmt.Errorf("%w: %s", domain.ErrToolBlocked, reason)
	}
	return nil
}

// ListTools describes the registered chair tools.
func (s *Service) ListTools() []domain.ToolDescriptor {
	return s.tools.Descriptors()
}
