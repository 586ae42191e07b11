package providers

import (
	"context"
	"time"
)

// Purpose identifies what a completion is used for. Clients may use it to
// shape canned responses; the HTTP client ignores it.
type Purpose string

const (
	PurposeExpand     Purpose = "expand"
	PurposeChooseLora Purpose = "choose_lora"
)

// Completer sends a single completion request to an LLM endpoint and
// returns the undecoded response body. Implementations must not retry.
type Completer interface {
	// Complete performs one outbound call.
	Complete(ctx context.Context, req *CompletionRequest) (*RawResponse, error)

	// Name returns the client identifier (e.g., "http", "stub").
	Name() string
}

// CompletionRequest is a request to an LLM.
type CompletionRequest struct {
	// Prompt is sent as the single user-role message.
	Prompt string

	// Model selection (uses client default if empty)
	Model string

	// Generation parameters
	Temperature float64
	MaxTokens   int

	// Request metadata. Not sent on the wire.
	Purpose   Purpose
	Idea      string
	Variants  int
	RequestID string
}

// RawResponse is the undecoded result of a completion call.
type RawResponse struct {
	Body       []byte
	StatusCode int
	Latency    time.Duration
	Provider   string
	RequestID  string
}
