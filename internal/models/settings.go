package models

import (
	"fmt"
	"os"
)

// AIProvider identifies a generation vendor
type AIProvider string

const (
	ProviderGemini     AIProvider = "gemini"
	ProviderOpenAI     AIProvider = "openai"
	ProviderClaude     AIProvider = "claude"
	ProviderOpenRouter AIProvider = "openrouter"
)

// GeminiKeyEnv is the environment variable holding a pre-configured Gemini key.
// When it is set the Gemini provider is usable without a user-supplied key.
const GeminiKeyEnv = "GEMINI_API_KEY"

// DefaultModels maps each provider to its default generation model
var DefaultModels = map[AIProvider]string{
	ProviderGemini:     "gemini-2.5-flash",
	ProviderOpenAI:     "gpt-4o",
	ProviderClaude:     "claude-3-haiku-20240307",
	ProviderOpenRouter: "google/gemini-flash-1.5",
}

// AIConfig selects and authenticates the generation provider.
// Every generation call path checks Ready before touching the network.
type AIConfig struct {
	Provider  AIProvider `json:"provider" mapstructure:"provider"`
	APIKey    string     `json:"api_key" mapstructure:"api_key"`
	Model     string     `json:"model" mapstructure:"model"`
	Validated bool       `json:"validated" mapstructure:"validated"`
}

// Preconfigured reports whether the provider works without a user key
func (c AIConfig) Preconfigured() bool {
	return c.Provider == ProviderGemini && os.Getenv(GeminiKeyEnv) != ""
}

// Ready returns a configuration error when the config cannot back a
// generation call: unknown provider, missing key, or unvalidated config.
func (c AIConfig) Ready() error {
	if _, ok := DefaultModels[c.Provider]; !ok {
		return fmt.Errorf("unsupported AI provider: %q", c.Provider)
	}
	if c.APIKey == "" && !c.Preconfigured() {
		return fmt.Errorf("API key for %s is not configured", c.Provider)
	}
	if !c.Validated {
		return fmt.Errorf("AI configuration for %s has not been validated; run the validate command first", c.Provider)
	}
	return nil
}

// ResolvedModel returns the configured model or the provider default
func (c AIConfig) ResolvedModel() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModels[c.Provider]
}

// WordPressConfig holds the target site and application-password credentials
type WordPressConfig struct {
	URL         string `json:"url" mapstructure:"url"`
	Username    string `json:"username" mapstructure:"username"`
	AppPassword string `json:"app_password" mapstructure:"app_password"`
	Validated   bool   `json:"validated" mapstructure:"validated"`
}

// Ready returns a configuration error when publishing cannot proceed
func (c WordPressConfig) Ready() error {
	if c.URL == "" || c.Username == "" || c.AppPassword == "" {
		return fmt.Errorf("WordPress site URL, username and application password are all required")
	}
	if !c.Validated {
		return fmt.Errorf("WordPress configuration has not been validated; run the validate command first")
	}
	return nil
}
