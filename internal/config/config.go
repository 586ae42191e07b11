package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// envAliases binds the bare environment names used by earlier deployments.
// PROMPTLAB_-prefixed names (e.g. PROMPTLAB_LLM_URL) always work too.
var envAliases = map[string]string{
	"llm.url":               "LLM_API_URL",
	"llm.api_key":           "LLM_API_KEY",
	"llm.model":             "LLM_MODEL",
	"llm.min_call_interval": "MIN_CALL_INTERVAL",
	"storage.db":            "STORAGE_DB",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
	logger    *slog.Logger
}

// NewManager creates a new config manager and loads initial config.
// cfgFile may be empty, in which case ./config.yaml and
// $HOME/.promptlab/config.yaml are searched.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
		logger:    slog.Default(),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults, environment and config file.
func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	defaults := DefaultConfig()
	v.SetDefault("llm.url", defaults.LLM.URL)
	v.SetDefault("llm.api_key", defaults.LLM.APIKey)
	v.SetDefault("llm.model", defaults.LLM.Model)
	v.SetDefault("llm.min_call_interval", defaults.LLM.MinInterval)
	v.SetDefault("llm.timeout_seconds", defaults.LLM.TimeoutSeconds)
	v.SetDefault("llm.max_tokens", defaults.LLM.MaxTokens)
	v.SetDefault("storage.db", defaults.Storage.DB)
	v.SetDefault("storage.outputs_dir", defaults.Storage.OutputsDir)
	v.SetDefault("catalog.path", defaults.Catalog.Path)
	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("defaults.variants", defaults.Defaults.Variants)
	v.SetDefault("defaults.creativity", defaults.Defaults.Creativity)
	v.SetDefault("defaults.llm_fallback", defaults.Defaults.LLMFallback)
	v.SetDefault("defaults.list_limit", defaults.Defaults.ListLimit)
	v.SetDefault("prompts.expand", defaults.Prompts.Expand)
	v.SetDefault("prompts.choose_lora", defaults.Prompts.ChooseLora)

	// Environment variables with PROMPTLAB_ prefix
	v.SetEnvPrefix("PROMPTLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		if err := v.BindEnv(key, "PROMPTLAB_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), alias); err != nil {
			return fmt.Errorf("failed to bind %s: %w", alias, err)
		}
	}

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.promptlab")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the file the configuration was read from, if any.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// SetLogger sets the logger used to report reload failures.
func (cm *Manager) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	cm.mu.Lock()
	cm.logger = logger
	cm.mu.Unlock()
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(cm.handleChange)
	cm.v.WatchConfig()
}

// handleChange reloads after a file event. A file that no longer parses is
// reported and the previous config stays active.
func (cm *Manager) handleChange(e fsnotify.Event) {
	if err := cm.reload(); err != nil {
		cm.mu.RLock()
		logger := cm.logger
		cm.mu.RUnlock()
		logger.Warn("config reload failed", "file", e.Name, "error", err)
	}
}

// reload re-reads the config file and notifies callbacks on success.
func (cm *Manager) reload() error {
	if cm.v.ConfigFileUsed() != "" {
		if err := cm.v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	cfg, err := cm.load()
	if err != nil {
		return err
	}

	cm.mu.Lock()
	cm.config = cfg
	callbacks := make([]func(*Config), len(cm.callbacks))
	copy(callbacks, cm.callbacks)
	cm.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
	return nil
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Promptlab configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Leave llm.url empty to use the offline stub client.
# Environment overrides: LLM_API_URL, LLM_API_KEY, LLM_MODEL, MIN_CALL_INTERVAL, STORAGE_DB
# or any key as PROMPTLAB_<SECTION>_<KEY>, e.g. PROMPTLAB_SERVER_PORT=9090

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
