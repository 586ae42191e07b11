// Package prompts holds the request templates sent to the LLM.
//
// Built-in templates are registered by the packages that use them and are
// the source of truth. Configuration may override any registered key; an
// override replaces the built-in text wholesale.
package prompts

// EmbeddedPrompt is a built-in template registered at startup.
type EmbeddedPrompt struct {
	Key         string // e.g. expand, choose_lora
	Text        string // text/template source
	Description string
	Variables   []string // extracted from Text when empty
	Hash        string   // SHA256 of Text when empty
}

// Prompt is the effective template for a key.
type Prompt struct {
	Key          string   `json:"key"`
	Text         string   `json:"text"`
	Description  string   `json:"description,omitempty"`
	Variables    []string `json:"variables,omitempty"`
	Hash         string   `json:"hash"`
	EmbeddedHash string   `json:"embedded_hash"`
	IsOverride   bool     `json:"is_override"`
}
