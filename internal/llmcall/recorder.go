package llmcall

import (
	"context"
	"log/slog"
)

// Recorder persists calls without failing the caller. A nil *Recorder
// records nothing.
type Recorder struct {
	store  *Store
	logger *slog.Logger
}

// NewRecorder creates a new LLM call recorder.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// RecordCall stores call, logging any failure.
func (r *Recorder) RecordCall(ctx context.Context, call *Call) {
	if r == nil || r.store == nil || call == nil {
		return
	}
	if err := r.store.Insert(context.WithoutCancel(ctx), call); err != nil {
		r.logger.Warn("failed to record llm call", "id", call.ID, "purpose", call.Purpose, "error", err)
	}
}
