package config

import (
	"errors"
	"testing"
)

func TestDefaultEntries(t *testing.T) {
	entries := DefaultEntries()
	if len(entries) == 0 {
		t.Fatal("expected default entries")
	}

	seen := make(map[string]bool)
	for i, e := range entries {
		if e.Key == "" {
			t.Errorf("entry %d has empty key", i)
		}
		if e.Description == "" {
			t.Errorf("entry %q has no description", e.Key)
		}
		if seen[e.Key] {
			t.Errorf("duplicate key %q", e.Key)
		}
		seen[e.Key] = true
		if i > 0 && entries[i-1].Key > e.Key {
			t.Errorf("entries not sorted at %q", e.Key)
		}
	}
}

func TestGetDefault(t *testing.T) {
	def := GetDefault("llm.max_tokens")
	if def == nil {
		t.Fatal("expected default for llm.max_tokens")
	}
	if def.Value != 400 {
		t.Errorf("Value = %v, want 400", def.Value)
	}

	if GetDefault("nonexistent.key") != nil {
		t.Error("expected nil for unknown key")
	}
	if _, err := LookupDefault("nonexistent.key"); !errors.Is(err, ErrNoDefault) {
		t.Errorf("LookupDefault error = %v, want ErrNoDefault", err)
	}
}

func TestEntries_RedactsLiteralKeys(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"${OPENROUTER_API_KEY}", "${OPENROUTER_API_KEY}"},
		{"sk-or-v1-abcdef1234", "****1234"},
		{"abc", "****"},
		{"", ""},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.LLM.APIKey = tt.key
		for _, e := range cfg.Entries() {
			if e.Key == "llm.api_key" && e.Value != tt.want {
				t.Errorf("redact(%q) = %v, want %q", tt.key, e.Value, tt.want)
			}
		}
	}
}
