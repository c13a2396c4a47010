package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/looplinehq/quorum/internal/config"
)

// NewProvider creates a completion provider based on configuration.
func NewProvider(cfg *config.Config) (Provider, error) {
	providerName := cfg.LLM.DefaultProvider
	if providerName == "" {
		providerName = "ollama"
	}

	providerCfg, exists := cfg.LLM.Providers[providerName]
	if !exists {
		return nil, fmt.Errorf("provider '%s' not found in configuration", providerName)
	}

	// Get API key from config, falling back to environment variables
	apiKey := providerCfg.APIKey
	if apiKey == "" {
		apiKey = getAPIKeyFromEnv(providerName)
	}

	timeout := time.Duration(providerCfg.TimeoutSeconds) * time.Second

	return NewProviderByName(providerName, &ProviderConfig{
		Name:        providerName,
		Endpoint:    providerCfg.Endpoint,
		APIKey:      apiKey,
		Model:       providerCfg.Model,
		MaxTokens:   providerCfg.MaxTokens,
		Temperature: providerCfg.Temperature,
		Timeout:     timeout,
	})
}

// getAPIKeyFromEnv retrieves the API key from standard environment variables.
func getAPIKeyFromEnv(providerName string) string {
	envVars := map[string]string{
		"openai":    "OPENAI_API_KEY",
		"anthropic": "ANTHROPIC_API_KEY",
	}
	if envVar, ok := envVars[providerName]; ok {
		return os.Getenv(envVar)
	}
	return ""
}

// NewProviderByName creates a provider from an explicit ProviderConfig.
func NewProviderByName(name string, cfg *ProviderConfig) (Provider, error) {
	switch name {
	case "ollama":
		return NewOllamaProvider(cfg), nil
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}
