// Package config provides configuration for the caucus server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Producer modes.
const (
	ProducerMock      = "mock"
	ProducerAgent     = "agent"
	ProducerOpenAI    = "openai"
	ProducerAnthropic = "anthropic"
)

// Config holds the server configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Rules of procedure; empty means the built-in rules
	RulesFile string

	// Chair tool policy; empty means the built-in policy
	PolicyFile string

	// Timer driver
	TimerTick time.Duration

	// Producers
	ProducerMode    string
	ProducerTimeout time.Duration
	AgentEndpoint   string
	LLMBaseURL      string
	LLMAPIKey       string
	LLMModel        string
	AnthropicAPIKey string
	AnthropicModel  string

	// Logging
	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 8080)
	v.SetDefault("database_url", "file:caucus.db?cache=shared&mode=rwc")
	v.SetDefault("rules_file", "")
	v.SetDefault("policy_file", "")
	v.SetDefault("timer_tick_ms", 250)
	v.SetDefault("producer_mode", ProducerMock)
	v.SetDefault("producer_timeout_ms", 30000)
	v.SetDefault("agent_endpoint", "")
	v.SetDefault("llm_base_url", "")
	v.SetDefault("llm_api_key", "")
	v.SetDefault("llm_model", "gpt-4o-mini")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("anthropic_model", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads configuration from the environment and, if CONFIG_FILE is set, from that file.
// Environment variables win over the file.
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith loads configuration through v.
func LoadWith(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read %s: %w", file, err)
			}
		}
	}

	cfg := &Config{
		HTTPPort:        v.GetInt("http_port"),
		DatabaseURL:     v.GetString("database_url"),
		RulesFile:       v.GetString("rules_file"),
		PolicyFile:      v.GetString("policy_file"),
		TimerTick:       time.Duration(v.GetInt("timer_tick_ms")) * time.Millisecond,
		ProducerMode:    strings.ToLower(strings.TrimSpace(v.GetString("producer_mode"))),
		ProducerTimeout: time.Duration(v.GetInt("producer_timeout_ms")) * time.Millisecond,
		AgentEndpoint:   v.GetString("agent_endpoint"),
		LLMBaseURL:      v.GetString("llm_base_url"),
		LLMAPIKey:       v.GetString("llm_api_key"),
		LLMModel:        v.GetString("llm_model"),
		AnthropicAPIKey: v.GetString("anthropic_api_key"),
		AnthropicModel:  v.GetString("anthropic_model"),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("config: invalid http_port %d", c.HTTPPort)
	}
	if c.TimerTick <= 0 {
		return fmt.Errorf("config: timer_tick_ms must be positive")
	}
	if c.ProducerTimeout <= 0 {
		return fmt.Errorf("config: producer_timeout_ms must be positive")
	}
	switch c.ProducerMode {
	case ProducerMock, ProducerOpenAI, ProducerAnthropic:
	case ProducerAgent:
		if c.AgentEndpoint == "" {
			return fmt.Errorf("config: agent_endpoint is required in agent mode")
		}
	default:
		return fmt.Errorf("config: unknown producer_mode %q", c.ProducerMode)
	}
	return nil
}
