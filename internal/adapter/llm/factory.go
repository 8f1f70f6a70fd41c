package llm

import (
	"fmt"
	"log/slog"

	"github.com/xiaot623/caucus/internal/adapter/agentclient"
	"github.com/xiaot623/caucus/internal/config"
	"github.com/xiaot623/caucus/internal/engine"
)

var (
	_ engine.Producer = (*Producer)(nil)
	_ engine.Advisor  = (*Producer)(nil)
	_ engine.Producer = (*MockProducer)(nil)
	_ engine.Advisor  = (*MockProducer)(nil)
	_ engine.Producer = (*agentclient.Client)(nil)
	_ engine.Advisor  = (*agentclient.Client)(nil)
)

// NewFromConfig creates the producer selected by PRODUCER_MODE.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (engine.Producer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.ProducerMode {
	case config.ProducerMock, "":
		logger.Info("using mock producer")
		return NewMockProducer(), nil
	case config.ProducerAgent:
		logger.Info("using agent producer", "endpoint", cfg.AgentEndpoint)
		return agentclient.NewClient(cfg.AgentEndpoint, cfg.ProducerTimeout), nil
	case config.ProducerOpenAI:
		logger.Info("using openai producer", "model", cfg.LLMModel, "base_url", cfg.LLMBaseURL)
		return NewProducer(NewOpenAICompleter(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel), cfg.ProducerTimeout), nil
	case config.ProducerAnthropic:
		logger.Info("using anthropic producer", "model", cfg.AnthropicModel)
		return NewProducer(NewAnthropicCompleter(cfg.AnthropicAPIKey, cfg.AnthropicModel), cfg.ProducerTimeout), nil
	default:
		return nil, fmt.Errorf("unknown producer mode %q", cfg.ProducerMode)
	}
}
