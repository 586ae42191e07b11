package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
)

const (
	OpenRouterName = "openrouter"
	// OpenRouterURL is the chat completions endpoint used when none is configured.
	OpenRouterURL = "https://openrouter.ai/api/v1/chat/completions"
	// DefaultModel is the model used when none is configured.
	DefaultModel = "deepseek/deepseek-chat-v3-0324:free"
	// DefaultTimeout bounds a single outbound call.
	DefaultTimeout = 15 * time.Second
)

// OpenRouterConfig holds configuration for the OpenRouter client.
type OpenRouterConfig struct {
	URL          string
	APIKey       string
	DefaultModel string
	Timeout      time.Duration
	// MinInterval is the minimum spacing between calls (default: 2s, negative disables)
	MinInterval time.Duration
	HTTPClient  *http.Client // Optional (tests)
	Logger      *slog.Logger
}

// OpenRouterClient implements Completer against an OpenAI-compatible
// chat completions endpoint.
type OpenRouterClient struct {
	url          string
	apiKey       string
	defaultModel string
	client       *http.Client
	limiter      *RateLimiter
	logger       *slog.Logger
}

// NewOpenRouterClient creates a new OpenRouter client.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.URL == "" {
		cfg.URL = OpenRouterURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MinInterval == 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &OpenRouterClient{
		url:          cfg.URL,
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
		client:       httpClient,
		limiter:      NewRateLimiter(cfg.MinInterval),
		logger:       cfg.Logger,
	}
}

// Name returns the client identifier.
func (c *OpenRouterClient) Name() string {
	return OpenRouterName
}

// Limiter exposes the client's rate limiter for status reporting.
func (c *OpenRouterClient) Limiter() *RateLimiter {
	return c.limiter
}

// Complete waits for the rate limiter, then issues exactly one POST.
func (c *OpenRouterClient) Complete(ctx context.Context, req *CompletionRequest) (*RawResponse, error) {
	const op = "openrouter.complete"

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	body, err := c.buildBody(req)
	if err != nil {
		return nil, NewError(KindValidation, op, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, NewError(KindNetwork, op, fmt.Errorf("rate limiter: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, NewError(KindNetwork, op, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("HTTP-Referer", "https://github.com/jackzampolin/promptlab")
	httpReq.Header.Set("X-Title", "Promptlab")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, NewError(KindNetwork, op, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(KindNetwork, op, fmt.Errorf("failed to read response: %w", err))
	}

	raw := &RawResponse{
		Body:       respBody,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
		Provider:   OpenRouterName,
		RequestID:  requestID,
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return raw, &Error{
			Kind:       KindNetwork,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", truncate(string(respBody), 512)),
		}
	}

	c.logger.Debug("llm call complete",
		"request_id", requestID,
		"purpose", req.Purpose,
		"status", resp.StatusCode,
		"latency", raw.Latency,
	)
	return raw, nil
}

// buildBody serializes the request as a chat completion with one user message.
func (c *OpenRouterClient) buildBody(req *CompletionRequest) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...[truncated]"
}
