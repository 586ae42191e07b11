package config

import "time"

// Config holds promptlab configuration.
// Stored at: {home}/config.yaml
type Config struct {
	LLM      LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Storage  StorageConfig `mapstructure:"storage" yaml:"storage"`
	Catalog  CatalogConfig `mapstructure:"catalog" yaml:"catalog"`
	Server   ServerConfig  `mapstructure:"server" yaml:"server"`
	Defaults DefaultsCfg   `mapstructure:"defaults" yaml:"defaults"`
	Prompts  PromptsConfig `mapstructure:"prompts" yaml:"prompts"`
}

// LLMConfig configures the LLM endpoint. An empty URL or API key selects
// the local stub client.
type LLMConfig struct {
	URL            string  `mapstructure:"url" yaml:"url"`
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	Model          string  `mapstructure:"model" yaml:"model"`
	MinInterval    float64 `mapstructure:"min_call_interval" yaml:"min_call_interval"` // seconds between calls
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxTokens      int     `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// StorageConfig locates the record database and export directory. Empty
// values fall back to the home directory layout.
type StorageConfig struct {
	DB         string `mapstructure:"db" yaml:"db"`
	OutputsDir string `mapstructure:"outputs_dir" yaml:"outputs_dir"`
}

// CatalogConfig locates the LORA catalog file (JSON or YAML).
type CatalogConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultsCfg holds request defaults.
type DefaultsCfg struct {
	Variants    int  `mapstructure:"variants" yaml:"variants"`
	Creativity  int  `mapstructure:"creativity" yaml:"creativity"`
	LLMFallback bool `mapstructure:"llm_fallback" yaml:"llm_fallback"`
	ListLimit   int  `mapstructure:"list_limit" yaml:"list_limit"`
}

// PromptsConfig overrides the built-in request templates. Empty values keep
// the built-in text. Templates use text/template syntax.
type PromptsConfig struct {
	Expand     string `mapstructure:"expand" yaml:"expand"`
	ChooseLora string `mapstructure:"choose_lora" yaml:"choose_lora"`
}

// Overrides returns the non-empty templates keyed by prompt key.
func (c PromptsConfig) Overrides() map[string]string {
	out := make(map[string]string)
	if c.Expand != "" {
		out["expand"] = c.Expand
	}
	if c.ChooseLora != "" {
		out["choose_lora"] = c.ChooseLora
	}
	return out
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			URL:            "",
			APIKey:         "${OPENROUTER_API_KEY}",
			Model:          "deepseek/deepseek-chat-v3-0324:free",
			MinInterval:    2.0,
			TimeoutSeconds: 15,
			MaxTokens:      400,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Defaults: DefaultsCfg{
			Variants:    3,
			Creativity:  5,
			LLMFallback: true,
			ListLimit:   100,
		},
	}
}

// ResolvedAPIKey returns the API key with ${ENV_VAR} references expanded.
func (c LLMConfig) ResolvedAPIKey() string {
	return ResolveEnvVars(c.APIKey)
}

// UseStub reports whether the stub client should answer instead of the
// HTTP endpoint.
func (c LLMConfig) UseStub() bool {
	return c.URL == "" || c.ResolvedAPIKey() == ""
}

// MinCallInterval returns the configured interval. Zero or negative
// disables spacing.
func (c LLMConfig) MinCallInterval() time.Duration {
	if c.MinInterval <= 0 {
		return -1
	}
	return time.Duration(c.MinInterval * float64(time.Second))
}

// Timeout returns the per-call timeout.
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
