package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	StubClientName = "stub"

	// StubLoraID is the adapter the stub recommends when asked to choose.
	StubLoraID = "aidmaFluxProUltra-FLUX-v0.1"
)

// StubClient answers locally with placeholder content. It is used when no
// endpoint URL or API key is configured.
type StubClient struct {
	LoraID string
	Weight float64
}

// NewStubClient creates a stub client with the default recommendation.
func NewStubClient() *StubClient {
	return &StubClient{LoraID: StubLoraID, Weight: 0.5}
}

// Name returns the client identifier.
func (c *StubClient) Name() string {
	return StubClientName
}

// Complete returns a variant list for expansion requests and a selection
// object for LORA requests.
func (c *StubClient) Complete(ctx context.Context, req *CompletionRequest) (*RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewError(KindNetwork, "stub.complete", err)
	}

	var payload any
	switch req.Purpose {
	case PurposeChooseLora:
		payload = map[string]any{
			"selected_lora":    c.LoraID,
			"suggested_weight": c.Weight,
		}
	default:
		n := req.Variants
		if n <= 0 {
			n = 1
		}
		idea := strings.TrimSpace(req.Idea)
		items := make([]VariantItem, 0, n)
		for i := 1; i <= n; i++ {
			items = append(items, VariantItem{
				Label:          fmt.Sprintf("variant_%d", i),
				Prompt:         fmt.Sprintf("%s, detailed scene, placeholder variant %d", idea, i),
				NegativePrompt: "blurry, low quality",
			})
		}
		payload = items
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewError(KindMalformed, "stub.complete", err)
	}
	return &RawResponse{
		Body:       body,
		StatusCode: http.StatusOK,
		Provider:   StubClientName,
		RequestID:  req.RequestID,
	}, nil
}
