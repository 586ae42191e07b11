// Package expand turns a short idea into prompt variants through one LLM
// call, and asks the LLM to recommend a LORA when tag matching fails.
//
// Every operation is fail-soft: errors are captured in the returned Result
// as a *providers.Error and logged, and the caller always receives a usable
// (possibly empty) value.
package expand

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/promptlab/internal/llmcall"
	"github.com/jackzampolin/promptlab/internal/metrics"
	"github.com/jackzampolin/promptlab/internal/prompts"
	"github.com/jackzampolin/promptlab/internal/providers"
)

const (
	// DefaultVariants is the number of variants requested when none is given.
	DefaultVariants = 3
	// DefaultMaxTokens is the completion budget for an expansion.
	DefaultMaxTokens = 400

	chooseTemperature = 0.2
	chooseMaxTokens   = 150
)

// SliderToTemp maps a creativity level in [0,10] to a sampling temperature.
func SliderToTemp(creativity int) float64 {
	switch {
	case creativity <= 2:
		return 0.2
	case creativity <= 5:
		return 0.5
	case creativity <= 8:
		return 0.8
	default:
		return 1.0
	}
}

// Config configures an Adapter.
type Config struct {
	// Client performs the outbound call. Defaults to a stub client.
	Client providers.Completer
	// Model overrides the client's default model.
	Model     string
	MaxTokens int
	Variants  int
	Logger    *slog.Logger
	Metrics   *metrics.Recorder
	Calls     *llmcall.Recorder
	// Prompts renders request texts. Defaults to NewPrompts(nil).
	Prompts *prompts.Resolver
}

// Adapter talks to the LLM endpoint and normalizes its responses.
type Adapter struct {
	client    providers.Completer
	model     string
	maxTokens int
	variants  int
	logger    *slog.Logger
	metrics   *metrics.Recorder
	calls     *llmcall.Recorder
	prompts   *prompts.Resolver
}

// New creates an Adapter.
func New(cfg Config) *Adapter {
	if cfg.Client == nil {
		cfg.Client = providers.NewStubClient()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Variants <= 0 {
		cfg.Variants = DefaultVariants
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Prompts == nil {
		// Built-in templates always parse.
		cfg.Prompts, _ = NewPrompts(nil, cfg.Logger)
	}
	return &Adapter{
		client:    cfg.Client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		variants:  cfg.Variants,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		calls:     cfg.Calls,
		prompts:   cfg.Prompts,
	}
}

// Prompts returns the resolver used to render request texts.
func (a *Adapter) Prompts() *prompts.Resolver {
	return a.prompts
}

// render fills the template for key, reporting failures as validation
// errors so no call is made.
func (a *Adapter) render(key string, data any) (string, *providers.Error) {
	text, err := a.prompts.Render(key, data)
	if err != nil {
		a.logger.Error("failed to render prompt", "key", key, "error", err)
		return "", providers.NewError(providers.KindValidation, key, err)
	}
	return text, nil
}

// ClientName returns the name of the underlying client.
func (a *Adapter) ClientName() string {
	return a.client.Name()
}

// Limiter returns the client's rate limiter, or nil if it has none.
func (a *Adapter) Limiter() *providers.RateLimiter {
	if l, ok := a.client.(interface{ Limiter() *providers.RateLimiter }); ok {
		return l.Limiter()
	}
	return nil
}

type decodeFunc func(body []byte) (providers.Response, error)

// complete performs one call and classifies its outcome with decode. The
// returned body is whatever the endpoint sent, even on failure.
func (a *Adapter) complete(ctx context.Context, req *providers.CompletionRequest, decode decodeFunc) (providers.Response, []byte, *providers.Error) {
	op := string(req.Purpose)
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if req.Model == "" {
		req.Model = a.model
	}

	var waitedBefore time.Duration
	limiter := a.Limiter()
	if limiter != nil {
		waitedBefore = limiter.Status().TotalWaited
	}

	start := time.Now()
	raw, err := a.client.Complete(ctx, req)
	latency := time.Since(start)

	if limiter != nil {
		a.metrics.RecordRateLimitWait(limiter.Status().TotalWaited - waitedBefore)
	}

	var body []byte
	if raw != nil {
		body = raw.Body
	}

	var (
		resp providers.Response
		perr *providers.Error
	)
	if err != nil {
		perr = providers.AsError(op, err)
	} else if resp, err = decode(body); err != nil {
		perr = providers.AsError(op, err)
	} else if resp.Truncated() {
		perr = providers.NewError(providers.KindMalformed, op, providers.ErrTruncated)
	}

	kind := ""
	if perr != nil {
		kind = string(perr.Kind)
	}
	a.metrics.RecordLLMCall(op, a.client.Name(), kind, latency)

	var callErr error
	if perr != nil {
		callErr = perr
	}
	a.calls.RecordCall(ctx, llmcall.FromCompletion(a.client.Name(), req, raw, callErr, latency))

	if perr != nil {
		a.logFailure(req, perr)
	}
	return resp, body, perr
}

func (a *Adapter) logFailure(req *providers.CompletionRequest, err *providers.Error) {
	attrs := []any{
		"request_id", req.RequestID,
		"purpose", req.Purpose,
		"kind", err.Kind,
		"error", err,
	}
	if err.StatusCode != 0 {
		attrs = append(attrs, "status", err.StatusCode)
	}
	switch {
	case errors.Is(err, providers.ErrTruncated):
		a.logger.Warn("llm completion truncated at token limit",
			append(attrs, "max_tokens", req.MaxTokens)...)
	default:
		a.logger.Warn(fmt.Sprintf("llm %s call failed", req.Purpose), attrs...)
	}
}
