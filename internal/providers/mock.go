package providers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is a Completer for testing.
type MockClient struct {
	// Configurable behavior
	Latency    time.Duration
	ShouldFail bool
	StatusCode int // Non-2xx produces a KindNetwork error
	Body       []byte

	// Optional limiter, to exercise spacing without a server
	Limiter *RateLimiter

	// State
	requestCount atomic.Int64
	mu           sync.Mutex
	requests     []CompletionRequest
}

// NewMockClient creates a new mock client returning body.
func NewMockClient(body string) *MockClient {
	return &MockClient{
		StatusCode: http.StatusOK,
		Body:       []byte(body),
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Complete records the request and returns the configured body.
func (c *MockClient) Complete(ctx context.Context, req *CompletionRequest) (*RawResponse, error) {
	const op = "mock.complete"

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, NewError(KindNetwork, op, err)
		}
	}

	count := c.requestCount.Add(1)
	c.mu.Lock()
	c.requests = append(c.requests, *req)
	c.mu.Unlock()

	if c.ShouldFail {
		return nil, NewError(KindNetwork, op, fmt.Errorf("mock client configured to fail"))
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, NewError(KindNetwork, op, ctx.Err())
		}
	}

	raw := &RawResponse{
		Body:       c.Body,
		StatusCode: c.StatusCode,
		Latency:    c.Latency,
		Provider:   MockClientName,
		RequestID:  fmt.Sprintf("mock-%d", count),
	}
	if c.StatusCode < 200 || c.StatusCode > 299 {
		return raw, &Error{Kind: KindNetwork, Op: op, StatusCode: c.StatusCode, Err: fmt.Errorf("mock status")}
	}
	return raw, nil
}

// RequestCount returns the number of calls made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns a copy of the recorded requests.
func (c *MockClient) Requests() []CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CompletionRequest, len(c.requests))
	copy(out, c.requests)
	return out
}
