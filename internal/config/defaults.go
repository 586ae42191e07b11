package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// Entry is one configuration key with its value and description.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

var descriptions = map[string]string{
	"llm.url":               "Chat completions endpoint; empty selects the offline stub (env LLM_API_URL)",
	"llm.api_key":           "Bearer token for the endpoint, ${ENV_VAR} syntax allowed (env LLM_API_KEY)",
	"llm.model":             "Model identifier sent with every request (env LLM_MODEL)",
	"llm.min_call_interval": "Minimum seconds between outbound calls (env MIN_CALL_INTERVAL)",
	"llm.timeout_seconds":   "Per-call HTTP timeout in seconds",
	"llm.max_tokens":        "Completion token budget for expansions",
	"storage.db":            "SQLite database file; empty uses the home directory (env STORAGE_DB)",
	"storage.outputs_dir":   "Directory receiving exported JSON; empty uses the home directory",
	"catalog.path":          "LORA catalog file (JSON or YAML); empty uses the home directory",
	"server.host":           "HTTP listen host",
	"server.port":           "HTTP listen port",
	"defaults.variants":     "Variants requested per expansion",
	"defaults.creativity":   "Creativity used when a request omits it",
	"defaults.llm_fallback": "Ask the LLM for a LORA when no tags match",
	"defaults.list_limit":   "Records returned by list when no limit is given",
	"prompts.expand":        "Template for expansion requests (fields .Idea, .Variants); empty uses the built-in text",
	"prompts.choose_lora":   "Template for LORA choice requests (fields .Idea, .Catalog); empty uses the built-in text",
}

// DefaultEntries returns the default configuration as flat entries.
func DefaultEntries() []Entry {
	return DefaultConfig().Entries()
}

// Entries flattens the configuration into sorted key/value entries. API
// keys are reported as configured, never resolved.
func (c *Config) Entries() []Entry {
	values := map[string]any{
		"llm.url":               c.LLM.URL,
		"llm.api_key":           c.LLM.APIKey,
		"llm.model":             c.LLM.Model,
		"llm.min_call_interval": c.LLM.MinInterval,
		"llm.timeout_seconds":   c.LLM.TimeoutSeconds,
		"llm.max_tokens":        c.LLM.MaxTokens,
		"storage.db":            c.Storage.DB,
		"storage.outputs_dir":   c.Storage.OutputsDir,
		"catalog.path":          c.Catalog.Path,
		"server.host":           c.Server.Host,
		"server.port":           c.Server.Port,
		"defaults.variants":     c.Defaults.Variants,
		"defaults.creativity":   c.Defaults.Creativity,
		"defaults.llm_fallback": c.Defaults.LLMFallback,
		"defaults.list_limit":   c.Defaults.ListLimit,
		"prompts.expand":        c.Prompts.Expand,
		"prompts.choose_lora":   c.Prompts.ChooseLora,
	}

	entries := make([]Entry, 0, len(values))
	for key, value := range values {
		if key == "llm.api_key" {
			value = redact(value.(string))
		}
		entries = append(entries, Entry{Key: key, Value: value, Description: descriptions[key]})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// GetDefault returns the default entry for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// LookupDefault is GetDefault returning ErrNoDefault for unknown keys.
func LookupDefault(key string) (Entry, error) {
	def := GetDefault(key)
	if def == nil {
		return Entry{}, fmt.Errorf("%w for key %q", ErrNoDefault, key)
	}
	return *def, nil
}

// redact keeps ${ENV_VAR} references visible and hides literal secrets.
func redact(key string) string {
	if key == "" || (strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}")) {
		return key
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
