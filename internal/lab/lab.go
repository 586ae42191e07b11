// Package lab ties expansion, LORA selection and storage together into the
// two user actions: generate variants for an idea, and save an edited
// variant.
package lab

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackzampolin/promptlab/internal/expand"
	"github.com/jackzampolin/promptlab/internal/lora"
	"github.com/jackzampolin/promptlab/internal/metrics"
	"github.com/jackzampolin/promptlab/internal/providers"
	"github.com/jackzampolin/promptlab/internal/storage"
)

const (
	// DefaultName is used when a saved prompt has no name.
	DefaultName = "untitled"

	minCreativity = 0
	maxCreativity = 10
)

// Config configures a Service.
type Config struct {
	Adapter     *expand.Adapter
	Store       *storage.Store
	Catalog     lora.Catalog
	Variants    int
	LLMFallback bool
	Logger      *slog.Logger
	Metrics     *metrics.Recorder
}

// Service is the session-level glue used by the HTTP API.
type Service struct {
	adapter     *expand.Adapter
	store       *storage.Store
	catalog     lora.Catalog
	selector    *lora.Selector
	variants    int
	llmFallback bool
	logger      *slog.Logger
	metrics     *metrics.Recorder
}

// New creates a Service.
func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Adapter == nil {
		cfg.Adapter = expand.New(expand.Config{Logger: cfg.Logger, Metrics: cfg.Metrics})
	}
	if cfg.Variants <= 0 {
		cfg.Variants = expand.DefaultVariants
	}
	return &Service{
		adapter:     cfg.Adapter,
		store:       cfg.Store,
		catalog:     cfg.Catalog,
		selector:    lora.NewSelector(cfg.Adapter, cfg.Logger),
		variants:    cfg.Variants,
		llmFallback: cfg.LLMFallback,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
}

// Catalog returns the loaded LORA catalog.
func (s *Service) Catalog() lora.Catalog {
	return s.catalog
}

// Store returns the record store.
func (s *Service) Store() *storage.Store {
	return s.store
}

// Adapter returns the LLM adapter.
func (s *Service) Adapter() *expand.Adapter {
	return s.adapter
}

// GenerateRequest is one idea to expand.
type GenerateRequest struct {
	Idea       string `json:"idea"`
	Creativity int    `json:"creativity"`
	Variants   int    `json:"variants,omitempty"`
	// NoFallback disables the LLM fallback for this request.
	NoFallback bool `json:"no_fallback,omitempty"`
}

// GenerateResult holds the variants with the selected LORA token injected.
type GenerateResult struct {
	Variants    []expand.Variant `json:"variants"`
	Selection   lora.Selection   `json:"selection"`
	LoraName    string           `json:"lora_name,omitempty"`
	LoraWeight  *float64         `json:"lora_weight,omitempty"`
	Temperature float64          `json:"temperature"`
	Status      string           `json:"status"`
	ErrorKind   string           `json:"error_kind,omitempty"`
	// RawResponse is the body returned by the LLM, kept so a saved record
	// can carry it.
	RawResponse string `json:"raw_response,omitempty"`
}

// Generate expands the idea, selects a LORA and injects its token into
// every variant. It never fails; problems are reported in Status.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) GenerateResult {
	creativity := ClampCreativity(req.Creativity)
	n := req.Variants
	if n <= 0 {
		n = s.variants
	}

	res := s.adapter.Expand(ctx, req.Idea, creativity, n)
	out := GenerateResult{
		Variants:    res.Variants,
		Selection:   lora.None(),
		Temperature: res.Temperature,
		RawResponse: res.RawResponse,
	}

	// A blank idea has nothing to select on and must not reach the LLM.
	if res.OK() || res.Err.Kind != providers.KindValidation {
		out.Selection = s.selector.Select(ctx, req.Idea, s.catalog, creativity, s.llmFallback && !req.NoFallback)
	}
	sel := out.Selection
	s.metrics.RecordSelection(string(sel.Method))

	if sel.Matched() {
		out.LoraName = *sel.LoraName
		out.LoraWeight = sel.Weight
		for i := range out.Variants {
			out.Variants[i].Prompt = lora.InjectToken(out.Variants[i].Prompt, *sel.LoraID, *sel.Weight)
		}
	}

	if !res.OK() {
		out.ErrorKind = string(res.Err.Kind)
		out.Status = failureStatus(res.Err.Kind)
		return out
	}

	out.Status = fmt.Sprintf("Generated %d variant(s)", len(out.Variants))
	if sel.Matched() {
		out.Status += fmt.Sprintf(" with %s (%s)", *sel.LoraName, sel.Method)
	}
	s.logger.Info("generated variants",
		"variants", len(out.Variants),
		"method", sel.Method,
		"temperature", out.Temperature)
	return out
}

// Select picks a LORA for idea without expanding it.
func (s *Service) Select(ctx context.Context, idea string, creativity int, allowFallback bool) lora.Selection {
	sel := s.selector.Select(ctx, idea, s.catalog, ClampCreativity(creativity), s.llmFallback && allowFallback)
	s.metrics.RecordSelection(string(sel.Method))
	return sel
}

// SaveRequest is the edited form submitted for saving.
type SaveRequest struct {
	ID             string       `json:"id,omitempty"`
	Name           string       `json:"name"`
	Prompt         string       `json:"prompt"`
	NegativePrompt string       `json:"negative_prompt,omitempty"`
	LoraName       string       `json:"lora_name,omitempty"`
	LoraID         string       `json:"lora_id,omitempty"`
	LoraWeight     *float64     `json:"lora_weight,omitempty"`
	SliderValue    *int         `json:"slider_value,omitempty"`
	LLMInput       string       `json:"llm_input,omitempty"`
	LLMRawResponse string       `json:"llm_raw_response,omitempty"`
	Tags           storage.Tags `json:"tags,omitempty"`
}

// SaveResult reports the outcome of a save.
type SaveResult struct {
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
}

// OK reports whether the record was saved.
func (r SaveResult) OK() bool {
	return r.ID != ""
}

// Save persists the form as a record.
func (s *Service) Save(ctx context.Context, req SaveRequest) SaveResult {
	if s.store == nil {
		return SaveResult{Status: "Storage is not available"}
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return SaveResult{Status: "Nothing to save: prompt is empty"}
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = DefaultName
	}

	// A selected LORA name resolves to its catalog id when no id was given.
	loraID := req.LoraID
	if loraID == "" && req.LoraName != "" {
		for _, d := range s.catalog {
			if d.Name == req.LoraName {
				loraID = d.ID
				break
			}
		}
	}

	id, err := s.store.SavePrompt(ctx, storage.Record{
		ID:             req.ID,
		Name:           name,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		LoraName:       req.LoraName,
		LoraID:         loraID,
		LoraWeight:     req.LoraWeight,
		SliderValue:    req.SliderValue,
		LLMInput:       req.LLMInput,
		LLMRawResponse: req.LLMRawResponse,
		Tags:           req.Tags,
	})
	if err != nil {
		return SaveResult{Status: "Save failed: storage error"}
	}
	return SaveResult{ID: id, Status: "Saved: " + id}
}

// ClampCreativity limits a creativity level to [0,10].
func ClampCreativity(c int) int {
	if c < minCreativity {
		return minCreativity
	}
	if c > maxCreativity {
		return maxCreativity
	}
	return c
}

func failureStatus(kind providers.ErrorKind) string {
	switch kind {
	case providers.KindValidation:
		return "Please enter an idea"
	case providers.KindNetwork:
		return "Nothing generated: the LLM service could not be reached"
	default:
		return "Nothing generated: the LLM response was unusable"
	}
}
