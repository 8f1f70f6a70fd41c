// Package rules loads the rules of procedure a session runs under.
package rules

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Majority is the threshold a substantive vote must reach.
type Majority string

const (
	MajoritySimple    Majority = "simple"
	MajorityTwoThirds Majority = "two_thirds"
)

// Rules are the tunable constants of the procedure.
type Rules struct {
	GSLSpeakerSeconds   int      `yaml:"gsl_speaker_seconds" toml:"gsl_speaker_seconds" json:"gsl_speaker_seconds"`
	MaxCaucusSeconds    int      `yaml:"max_caucus_seconds" toml:"max_caucus_seconds" json:"max_caucus_seconds"`
	FallbackUtterance   string   `yaml:"fallback_utterance" toml:"fallback_utterance" json:"fallback_utterance"`
	SubstantiveMajority Majority `yaml:"substantive_majority" toml:"substantive_majority" json:"substantive_majority"`
	Quorum              int      `yaml:"quorum" toml:"quorum" json:"quorum"`
	HintMaxChars        int      `yaml:"hint_max_chars" toml:"hint_max_chars" json:"hint_max_chars"`
	TranscriptContext   int      `yaml:"transcript_context" toml:"transcript_context" json:"transcript_context"`
}

// Default returns the built-in rules.
func Default() Rules {
	return Rules{
		GSLSpeakerSeconds:   90,
		MaxCaucusSeconds:    1800,
		FallbackUtterance:   "The delegation passes.",
		SubstantiveMajority: MajoritySimple,
		Quorum:              1,
		HintMaxChars:        280,
		TranscriptContext:   10,
	}
}

// Normalized fills zero values with defaults.
func (r Rules) Normalized() Rules {
	def := Default()
	if r.GSLSpeakerSeconds == 0 {
		r.GSLSpeakerSeconds = def.GSLSpeakerSeconds
	}
	if r.MaxCaucusSeconds == 0 {
		r.MaxCaucusSeconds = def.MaxCaucusSeconds
	}
	r.FallbackUtterance = strings.TrimSpace(r.FallbackUtterance)
	if r.FallbackUtterance == "" {
		r.FallbackUtterance = def.FallbackUtterance
	}
	if r.SubstantiveMajority == "" {
		r.SubstantiveMajority = def.SubstantiveMajority
	}
	if r.Quorum == 0 {
		r.Quorum = def.Quorum
	}
	if r.HintMaxChars == 0 {
		r.HintMaxChars = def.HintMaxChars
	}
	if r.TranscriptContext == 0 {
		r.TranscriptContext = def.TranscriptContext
	}
	return r
}

// Validate rejects rules no session could run under.
func (r Rules) Validate() error {
	if r.GSLSpeakerSeconds < 0 || r.MaxCaucusSeconds < 0 {
		return fmt.Errorf("rules: durations must not be negative")
	}
	if r.Quorum < 0 || r.HintMaxChars < 0 || r.TranscriptContext < 0 {
		return fmt.Errorf("rules: counts must not be negative")
	}
	switch r.SubstantiveMajority {
	case "", MajoritySimple, MajorityTwoThirds:
	default:
		return fmt.Errorf("rules: unknown substantive_majority %q", r.SubstantiveMajority)
	}
	return nil
}

// GSLSpeakerTime is the speaking time granted on the general speakers list.
func (r Rules) GSLSpeakerTime() time.Duration {
	return time.Duration(r.GSLSpeakerSeconds) * time.Second
}

// MaxCaucus is the longest caucus a motion may request.
func (r Rules) MaxCaucus() time.Duration {
	return time.Duration(r.MaxCaucusSeconds) * time.Second
}

// ParseYAML decodes and validates a YAML rules payload.
func ParseYAML(data []byte) (Rules, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Rules{}, fmt.Errorf("rules: payload is empty")
	}
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("rules: decode yaml: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r.Normalized(), nil
}

// ParseTOML decodes and validates a TOML rules payload.
func ParseTOML(data []byte) (Rules, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Rules{}, fmt.Errorf("rules: payload is empty")
	}
	var r Rules
	if err := toml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("rules: decode toml: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r.Normalized(), nil
}

// Load reads a rules file, choosing the decoder by extension. An empty path yields the defaults.
func Load(path string) (Rules, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("rules: read %s: %w", path, err)
	}
	var r Rules
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		r, err = ParseYAML(data)
	case ".toml":
		r, err = ParseTOML(data)
	default:
		return Rules{}, fmt.Errorf("rules: unsupported file type %s", path)
	}
	if err != nil {
		return Rules{}, fmt.Errorf("rules: %s: %w", path, err)
	}
	return r, nil
}
