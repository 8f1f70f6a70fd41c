package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYAMLFillsDefaults(t *testing.T) {
	r, err := ParseYAML([]byte("gsl_speaker_seconds: 60\nsubstantive_majority: two_thirds\n"))
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, r.GSLSpeakerTime())
	assert.Equal(t, MajorityTwoThirds, r.SubstantiveMajority)
	assert.Equal(t, Default().FallbackUtterance, r.FallbackUtterance)
	assert.Equal(t, 1800*time.Second, r.MaxCaucus())
}

func TestParseTOML(t *testing.T) {
	r, err := ParseTOML([]byte("max_caucus_seconds = 900\nfallback_utterance = \"We yield.\"\nquorum = 3\n"))
	require.NoError(t, err)

	assert.Equal(t, 900, r.MaxCaucusSeconds)
	assert.Equal(t, "We yield.", r.FallbackUtterance)
	assert.Equal(t, 3, r.Quorum)
	assert.Equal(t, MajoritySimple, r.SubstantiveMajority)
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := ParseYAML([]byte("substantive_majority: unanimous\n"))
	assert.Error(t, err)

	_, err = ParseYAML([]byte("   \n"))
	assert.Error(t, err)

	_, err = ParseTOML([]byte("gsl_speaker_seconds = -5\n"))
	assert.Error(t, err)
}

func TestLoadByExtension(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("hint_max_chars: 40\n"), 0o644))
	r, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 40, r.HintMaxChars)

	tomlPath := filepath.Join(dir, "rules.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("transcript_context = 4\n"), 0o644))
	r, err = Load(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, 4, r.TranscriptContext)

	_, err = Load(filepath.Join(dir, "rules.ini"))
	assert.Error(t, err)

	r, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), r)
}
