package provider

import (
	"context"
	"errors"

	"github.com/alexwday/web-research/config"
	"github.com/alexwday/web-research/models"
	openai_provider "github.com/alexwday/web-research/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	// ChatStream runs one LLM round over the transcript with the given tool
	// menu. Content deltas are forwarded through onDelta in arrival order;
	// the returned completion carries the full content plus any tool calls.
	ChatStream(ctx context.Context, turns []models.Turn, tools []models.ToolSpec, onDelta func(chunk string)) (models.Completion, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch Client(cfg.Type) {
	case OpenAI:
		if cfg.APIKey == "" {
			return nil, errors.New("llm api key not set")
		}
		return openai_provider.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
