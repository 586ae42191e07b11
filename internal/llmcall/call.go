// Package llmcall records every LLM call with its input, raw response and
// outcome for traceability.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/promptlab/internal/providers"
)

// Call represents a recorded LLM call.
type Call struct {
	ID string `json:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// What was asked
	Purpose     string   `json:"purpose"`
	Idea        string   `json:"idea"`
	Prompt      string   `json:"prompt"`
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`

	// What came back
	StatusCode int    `json:"status_code,omitempty"`
	Response   string `json:"response"`

	// Status
	Success   bool   `json:"success"`
	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`
}

// FromCompletion creates a Call from a request and its outcome. raw may be
// nil when the request never produced a response; callErr is the first
// error seen, including decode failures.
func FromCompletion(provider string, req *providers.CompletionRequest, raw *providers.RawResponse, callErr error, latency time.Duration) *Call {
	if req == nil {
		return nil
	}

	temp := req.Temperature
	call := &Call{
		ID:          uuid.New().String(),
		Timestamp:   time.Now().UTC(),
		LatencyMs:   int(latency.Milliseconds()),
		Purpose:     string(req.Purpose),
		Idea:        req.Idea,
		Prompt:      req.Prompt,
		Provider:    provider,
		Model:       req.Model,
		Temperature: &temp,
		Success:     callErr == nil,
	}
	if req.RequestID != "" {
		call.ID = req.RequestID
	}

	if raw != nil {
		call.StatusCode = raw.StatusCode
		call.Response = string(raw.Body)
		if raw.Provider != "" {
			call.Provider = raw.Provider
		}
	}

	if callErr != nil {
		call.ErrorKind = string(providers.KindOf(callErr))
		call.Error = callErr.Error()
	}
	return call
}
