package providers

import (
	"os"
)

// TestConfig holds live endpoint settings loaded from environment variables,
// using the same variable names as the server.
type TestConfig struct {
	URL    string
	APIKey string
	Model  string
}

// LoadTestConfig reads LLM_API_URL, OPENROUTER_API_KEY and LLM_MODEL.
func LoadTestConfig() TestConfig {
	return TestConfig{
		URL:    os.Getenv("LLM_API_URL"),
		APIKey: os.Getenv("OPENROUTER_API_KEY"),
		Model:  os.Getenv("LLM_MODEL"),
	}
}

// HasOpenRouter returns true if an API key is configured.
func (c TestConfig) HasOpenRouter() bool {
	return c.APIKey != ""
}

// NewOpenRouterClient creates a client from test config.
// Returns nil if not configured.
func (c TestConfig) NewOpenRouterClient() *OpenRouterClient {
	if !c.HasOpenRouter() {
		return nil
	}
	return NewOpenRouterClient(OpenRouterConfig{
		URL:          c.URL,
		APIKey:       c.APIKey,
		DefaultModel: c.Model,
	})
}
