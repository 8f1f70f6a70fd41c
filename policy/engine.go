package policy

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by the chair policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Input is what the chair policy sees for one tool invocation.
type Input struct {
	ToolName  string         `json:"tool_name"`
	Args      map[string]any `json:"args"`
	SessionID string         `json:"session_id"`
	Phase     string         `json:"phase"`
	Suspended bool           `json:"suspended"`
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.chair_policy.result"),
		rego.Module("chair_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// LoadEngine reads a policy file, or uses DefaultPolicy when path is empty.
func LoadEngine(ctx context.Context, path string) (*Engine, error) {
	if strings.TrimSpace(path) == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	return NewEngine(ctx, string(content))
}

// Evaluate checks a chair tool invocation.
// Returns: decision (allow, block), reason (empty when allowed), error
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, string, error) {
	if input.Args == nil {
		input.Args = map[string]any{}
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, "", nil
	}

	val, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return DecisionAllow, "", nil
	}
	decision, _ := val["decision"].(string)
	if decision == "" {
		decision = DecisionAllow
	}
	var reasons []string
	if raw, ok := val["reasons"].([]interface{}); ok {
		for _, r := range raw {
			if s, ok := r.(string); ok {
				reasons = append(reasons, s)
			}
		}
	}
	sort.Strings(reasons)
	return decision, strings.Join(reasons, "; "), nil
}

// DefaultPolicy is the default chair policy content.
const DefaultPolicy = `
package chair_policy

default decision = "allow"

decision = "block" {
	count(reasons) > 0
}

result = {"decision": decision, "reasons": reasons} {
	true
}

# Extensions are granted in bounded increments
reasons["extensions are limited to 600 seconds at a time"] {
	input.tool_name == "extend_session"
	input.args.seconds > 600
}

# Caucuses longer than half an hour need a rules change, not a motion
reasons["caucus motions are limited to 1800 seconds"] {
	input.tool_name == "set_motion"
	input.args.total_seconds > 1800
}

# The clock is stopped during voting procedure
reasons["the timer cannot be suspended during voting procedure"] {
	input.tool_name == "suspend_session"
	input.phase == "VOTING"
}

# Debate cannot be closed before roll call
reasons["debate cannot be closed during roll call"] {
	input.tool_name == "close_debate"
	input.phase == "ROLL_CALL"
}
`
