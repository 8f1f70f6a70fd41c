package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	decision, reason, err := engine.Evaluate(ctx, Input{ToolName: "extend_session", Phase: "MOD", Args: map[string]any{"seconds": 120}})
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, decision)
	assert.Empty(t, reason)

	decision, reason, err = engine.Evaluate(ctx, Input{ToolName: "extend_session", Phase: "MOD", Args: map[string]any{"seconds": 900}})
	require.NoError(t, err)
	assert.Equal(t, DecisionBlock, decision)
	assert.Contains(t, reason, "600 seconds")

	decision, _, err = engine.Evaluate(ctx, Input{ToolName: "suspend_session", Phase: "VOTING"})
	require.NoError(t, err)
	assert.Equal(t, DecisionBlock, decision)

	decision, _, err = engine.Evaluate(ctx, Input{ToolName: "tally_vote", Phase: "VOTING"})
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, decision)
}

func TestLoadEngineFromFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chair.rego")
	content := `
package chair_policy

default decision = "allow"

decision = "block" {
	count(reasons) > 0
}

result = {"decision": decision, "reasons": reasons} {
	true
}

reasons["no resolutions today"] {
	input.tool_name == "create_resolution"
}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	engine, err := LoadEngine(ctx, path)
	require.NoError(t, err)
	decision, reason, err := engine.Evaluate(ctx, Input{ToolName: "create_resolution"})
	require.NoError(t, err)
	assert.Equal(t, DecisionBlock, decision)
	assert.Equal(t, "no resolutions today", reason)
}

func TestNewEngineRejectsBrokenPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package chair_policy\n\ndecision = {")
	assert.Error(t, err)
}
