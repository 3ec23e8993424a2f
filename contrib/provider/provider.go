// Package provider builds the configured LLM client.
package provider

import (
	"fmt"

	"github.com/sweetpotato0/agentgate/agent"
	"github.com/sweetpotato0/agentgate/config"
	"github.com/sweetpotato0/agentgate/contrib/provider/claude"
	"github.com/sweetpotato0/agentgate/contrib/provider/openai"
)

// Client is an LLM client that can report the model it targets.
type Client interface {
	agent.LLMClient
	Model() string
}

// New returns the client selected by cfg.Provider.
func New(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		oc := openai.DefaultConfig()
		oc.APIKey = cfg.OpenAIAPIKey
		oc.BaseURL = cfg.OpenAIBaseURL
		oc.Temperature = cfg.Temperature
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		if cfg.MaxTokens > 0 {
			oc.MaxTokens = cfg.MaxTokens
		}
		return openai.New(oc), nil
	case config.ProviderClaude:
		cc := claude.DefaultConfig(cfg.AnthropicAPIKey, cfg.AnthropicBaseURL)
		cc.Temperature = cfg.Temperature
		if cfg.Model != "" {
			cc.Model = cfg.Model
		}
		if cfg.MaxTokens > 0 {
			cc.MaxTokens = cfg.MaxTokens
		}
		return claude.New(cc), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}
