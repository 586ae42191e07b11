package expand

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jackzampolin/promptlab/internal/llmcall"
	"github.com/jackzampolin/promptlab/internal/lora"
	"github.com/jackzampolin/promptlab/internal/metrics"
	"github.com/jackzampolin/promptlab/internal/providers"
)

func TestSliderToTemp(t *testing.T) {
	want := map[int]float64{
		0: 0.2, 1: 0.2, 2: 0.2,
		3: 0.5, 4: 0.5, 5: 0.5,
		6: 0.8, 7: 0.8, 8: 0.8,
		9: 1.0, 10: 1.0,
	}
	for creativity := 0; creativity <= 10; creativity++ {
		if got := SliderToTemp(creativity); got != want[creativity] {
			t.Errorf("SliderToTemp(%d) = %v, want %v", creativity, got, want[creativity])
		}
	}
}

func TestAdapter_Expand(t *testing.T) {
	ctx := context.Background()

	t.Run("empty idea makes no call", func(t *testing.T) {
		mock := providers.NewMockClient(`[]`)
		adapter := New(Config{Client: mock})

		for _, idea := range []string{"", "   \t\n"} {
			res := adapter.Expand(ctx, idea, 5, 3)
			if len(res.Variants) != 0 {
				t.Errorf("Variants = %v, want empty", res.Variants)
			}
			if res.Err == nil || res.Err.Kind != providers.KindValidation {
				t.Errorf("Err = %v, want validation", res.Err)
			}
		}
		if got := mock.RequestCount(); got != 0 {
			t.Errorf("RequestCount = %d, want 0", got)
		}
		if got := adapter.ExpandPrompt(ctx, "", 5); got == nil || len(got) != 0 {
			t.Errorf("ExpandPrompt(\"\") = %#v, want empty slice", got)
		}
	})

	t.Run("request parameters", func(t *testing.T) {
		mock := providers.NewMockClient(`[{"prompt":"a"}]`)
		adapter := New(Config{Client: mock, Model: "test-model"})

		res := adapter.Expand(ctx, "neon city", 9, 0)
		if res.Temperature != 1.0 {
			t.Errorf("Temperature = %v, want 1.0", res.Temperature)
		}

		reqs := mock.Requests()
		if len(reqs) != 1 {
			t.Fatalf("got %d requests, want 1", len(reqs))
		}
		req := reqs[0]
		if req.Prompt != "Expand the following idea into 3 different prompts: neon city" {
			t.Errorf("Prompt = %q", req.Prompt)
		}
		if req.Temperature != 1.0 || req.MaxTokens != DefaultMaxTokens || req.Model != "test-model" {
			t.Errorf("unexpected request: %+v", req)
		}
		if req.Purpose != providers.PurposeExpand || req.Variants != 3 {
			t.Errorf("unexpected metadata: %+v", req)
		}
	})

	t.Run("chat completion shape", func(t *testing.T) {
		mock := providers.NewMockClient(`{"choices":[{"message":{"role":"assistant","content":"1. neon street\n2. rainy alley"},"finish_reason":"stop"}]}`)
		res := New(Config{Client: mock}).Expand(ctx, "neon city", 5, 2)

		want := []Variant{{Label: "variant_1", Prompt: "1. neon street\n2. rainy alley"}}
		if diff := cmp.Diff(want, res.Variants); diff != "" {
			t.Errorf("Variants mismatch (-want +got):\n%s", diff)
		}
		if !res.OK() {
			t.Errorf("Err = %v", res.Err)
		}
		if !strings.Contains(res.RawResponse, "choices") {
			t.Errorf("RawResponse = %q", res.RawResponse)
		}
	})

	t.Run("variant list shape", func(t *testing.T) {
		body := `[
			{"label": "noir", "prompt": "noir street", "negative_prompt": "color"},
			{"variant": "noir", "prompt": "noir alley"},
			{"prompt": "plain"},
			{"label": "empty", "prompt": "  "},
			{"label": "noir", "prompt": "noir roof"}
		]`
		res := New(Config{Client: providers.NewMockClient(body)}).Expand(ctx, "noir", 5, 5)

		want := []Variant{
			{Label: "noir", Prompt: "noir street", NegativePrompt: "color"},
			{Label: "noir_2", Prompt: "noir alley"},
			{Label: "variant_3", Prompt: "plain"},
			{Label: "noir_3", Prompt: "noir roof"},
		}
		if diff := cmp.Diff(want, res.Variants); diff != "" {
			t.Errorf("Variants mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unrecognized shapes", func(t *testing.T) {
		for _, body := range []string{`{"text":"hi"}`, `"hi"`, `not json`, `[1,2]`, `{"choices":[]}`} {
			res := New(Config{Client: providers.NewMockClient(body)}).Expand(ctx, "idea", 5, 3)
			if len(res.Variants) != 0 {
				t.Errorf("body %s: Variants = %v, want empty", body, res.Variants)
			}
			if res.Err == nil || res.Err.Kind != providers.KindMalformed {
				t.Errorf("body %s: Err = %v, want malformed", body, res.Err)
			}
		}
	})

	t.Run("truncated completion", func(t *testing.T) {
		mock := providers.NewMockClient(`{"choices":[{"message":{"role":"assistant","content":"half a pro"},"finish_reason":"length"}]}`)
		res := New(Config{Client: mock}).Expand(ctx, "idea", 5, 3)
		if len(res.Variants) != 0 {
			t.Errorf("Variants = %v, want empty", res.Variants)
		}
		if res.Err == nil || !errors.Is(res.Err, providers.ErrTruncated) {
			t.Errorf("Err = %v, want truncated", res.Err)
		}
		if res.Err.Kind != providers.KindMalformed {
			t.Errorf("Kind = %s, want malformed", res.Err.Kind)
		}
	})

	t.Run("network failure", func(t *testing.T) {
		mock := providers.NewMockClient(`[]`)
		mock.ShouldFail = true
		res := New(Config{Client: mock}).Expand(ctx, "idea", 5, 3)
		if len(res.Variants) != 0 || res.Err == nil || res.Err.Kind != providers.KindNetwork {
			t.Errorf("got %+v, want empty network failure", res)
		}
	})

	t.Run("non-2xx status", func(t *testing.T) {
		mock := providers.NewMockClient(`[{"prompt":"should be ignored"}]`)
		mock.StatusCode = 500
		res := New(Config{Client: mock}).Expand(ctx, "idea", 5, 3)
		if len(res.Variants) != 0 {
			t.Errorf("Variants = %v, want empty", res.Variants)
		}
		if res.Err == nil || res.Err.Kind != providers.KindNetwork || res.Err.StatusCode != 500 {
			t.Errorf("Err = %v, want network with status 500", res.Err)
		}
	})

	t.Run("stub client by default", func(t *testing.T) {
		adapter := New(Config{})
		if adapter.ClientName() != providers.StubClientName {
			t.Fatalf("ClientName = %s", adapter.ClientName())
		}
		got := adapter.ExpandPrompt(ctx, "castle", 5)
		if len(got) != DefaultVariants {
			t.Fatalf("len = %d, want %d", len(got), DefaultVariants)
		}
		if !strings.HasPrefix(got[0].Prompt, "castle") {
			t.Errorf("Prompt = %q", got[0].Prompt)
		}
	})
}

func TestAdapter_BackToBackCallsRespectInterval(t *testing.T) {
	interval := 100 * time.Millisecond
	mock := providers.NewMockClient(`[{"prompt":"a"}]`)
	mock.Limiter = providers.NewRateLimiter(interval)
	adapter := New(Config{Client: mock})

	ctx := context.Background()
	adapter.ExpandPrompt(ctx, "first", 5)
	firstDone := time.Now()
	adapter.ExpandPrompt(ctx, "second", 5)

	if elapsed := time.Since(firstDone); elapsed < interval/2 {
		t.Errorf("second call completed %v after first, want close to %v", elapsed, interval)
	}
	if got := mock.Limiter.Status().TotalAdmitted; got != 2 {
		t.Errorf("TotalAdmitted = %d, want 2", got)
	}
}

func TestAdapter_RecordsCalls(t *testing.T) {
	ctx := context.Background()
	store, err := llmcall.NewStore(ctx, filepath.Join(t.TempDir(), "storage.db"))
	if err != nil {
		t.Fatal(err)
	}
	mock := providers.NewMockClient(`not json`)
	adapter := New(Config{
		Client:  mock,
		Calls:   llmcall.NewRecorder(store, nil),
		Metrics: metrics.NewRecorder(),
	})

	adapter.Expand(ctx, "idea", 5, 3)

	calls, err := store.List(ctx, llmcall.QueryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 {
		t.Fatalf("recorded %d calls, want 1", len(calls))
	}
	if calls[0].Success || calls[0].ErrorKind != string(providers.KindMalformed) {
		t.Errorf("call = %+v", calls[0])
	}
	if calls[0].Idea != "idea" || calls[0].Response != "not json" {
		t.Errorf("call = %+v", calls[0])
	}
}

func TestAdapter_ChooseLoraViaLLM(t *testing.T) {
	ctx := context.Background()
	catalog := lora.Catalog{
		{ID: "forest", Name: "Deep Forest", Description: "mossy woods", Tags: []string{"forest"}, DefaultWeight: 0.7},
		{ID: "city-neon", Name: "Neon City", Tags: []string{"city"}, DefaultWeight: 0.5},
	}

	tests := []struct {
		name       string
		body       string
		wantLora   string
		wantWeight float64
		wantKind   providers.ErrorKind
	}{
		{
			name:       "bare object",
			body:       `{"selected_lora":"forest","suggested_weight":0.65}`,
			wantLora:   "forest",
			wantWeight: 0.65,
		},
		{
			name:       "choice content with code fence",
			body:       `{"choices":[{"message":{"role":"assistant","content":"` + "```json\\n{\\\"selected_lora\\\":\\\"city-neon\\\",\\\"suggested_weight\\\":0.4}\\n```" + `"},"finish_reason":"stop"}]}`,
			wantLora:   "city-neon",
			wantWeight: 0.4,
		},
		{
			name:       "missing weight defaults",
			body:       `{"selected_lora":"forest"}`,
			wantLora:   "forest",
			wantWeight: 0.5,
		},
		{
			name:     "weight out of range",
			body:     `{"selected_lora":"forest","suggested_weight":3}`,
			wantKind: providers.KindMalformed,
		},
		{
			name:     "prose content",
			body:     `{"choices":[{"message":{"role":"assistant","content":"I like forest"},"finish_reason":"stop"}]}`,
			wantKind: providers.KindMalformed,
		},
		{
			name:     "variant list",
			body:     `[{"prompt":"x"}]`,
			wantKind: providers.KindMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := providers.NewMockClient(tt.body)
			res := New(Config{Client: mock}).ChooseLoraViaLLM(ctx, "a walk in the woods", catalog)

			if tt.wantKind != "" {
				if res.Err == nil || res.Err.Kind != tt.wantKind {
					t.Fatalf("Err = %v, want kind %s", res.Err, tt.wantKind)
				}
				if res.OK() {
					t.Error("OK() should be false")
				}
				return
			}
			if res.Err != nil {
				t.Fatalf("Err = %v", res.Err)
			}
			if res.SelectedLora != tt.wantLora || res.SuggestedWeight != tt.wantWeight {
				t.Errorf("got %s/%v, want %s/%v", res.SelectedLora, res.SuggestedWeight, tt.wantLora, tt.wantWeight)
			}

			req := mock.Requests()[0]
			if req.Temperature != 0.2 || req.MaxTokens != 150 {
				t.Errorf("request temperature=%v max_tokens=%d", req.Temperature, req.MaxTokens)
			}
			if !strings.Contains(req.Prompt, "forest: mossy woods") || !strings.Contains(req.Prompt, "city-neon: No description") {
				t.Errorf("Prompt = %q", req.Prompt)
			}
		})
	}

	t.Run("empty idea makes no call", func(t *testing.T) {
		mock := providers.NewMockClient(`{}`)
		res := New(Config{Client: mock}).ChooseLoraViaLLM(ctx, " ", catalog)
		if res.Err == nil || res.Err.Kind != providers.KindValidation || mock.RequestCount() != 0 {
			t.Errorf("got %+v with %d calls", res, mock.RequestCount())
		}
	})

	t.Run("network failure", func(t *testing.T) {
		mock := providers.NewMockClient(`{}`)
		mock.ShouldFail = true
		if _, ok := New(Config{Client: mock}).ChooseLora(ctx, "woods", catalog); ok {
			t.Error("ChooseLora should fail")
		}
	})
}

func TestAdapter_FallbackThroughSelector(t *testing.T) {
	catalog := lora.Catalog{
		{ID: providers.StubLoraID, Name: "Flux Pro Ultra", Tags: []string{"photo"}, DefaultWeight: 0.5},
	}
	selector := lora.NewSelector(New(Config{}), nil)

	sel := selector.Select(context.Background(), "dragon over mountains", catalog, 5, true)
	if sel.Method != lora.MethodLLM {
		t.Fatalf("Method = %s, want llm", sel.Method)
	}
	if *sel.LoraID != providers.StubLoraID || *sel.Weight != 0.5 {
		t.Errorf("got %s/%v", *sel.LoraID, *sel.Weight)
	}
}

func TestAdapter_PromptOverrides(t *testing.T) {
	ctx := context.Background()

	t.Run("built-in choose text", func(t *testing.T) {
		mock := providers.NewMockClient(`{"selected_lora":"forest"}`)
		a := New(Config{Client: mock})
		a.ChooseLoraViaLLM(ctx, "dark woods", lora.Catalog{{ID: "forest", Description: "mossy woods"}})

		want := "Given the idea: \"dark woods\", choose the best LORA from the following list:\nforest: mossy woods\nReturn a JSON with selected_lora and suggested_weight."
		if got := mock.Requests()[0].Prompt; got != want {
			t.Errorf("Prompt = %q, want %q", got, want)
		}
	})

	t.Run("configured template is used", func(t *testing.T) {
		resolver, err := NewPrompts(map[string]string{PromptKeyExpand: "{{.Variants}} takes on {{.Idea}}"}, nil)
		if err != nil {
			t.Fatalf("NewPrompts() error = %v", err)
		}
		mock := providers.NewMockClient(`[{"prompt":"x"}]`)
		a := New(Config{Client: mock, Prompts: resolver})
		a.Expand(ctx, "neon city", 5, 2)

		if got := mock.Requests()[0].Prompt; got != "2 takes on neon city" {
			t.Errorf("Prompt = %q", got)
		}
	})

	t.Run("render failure makes no call", func(t *testing.T) {
		resolver, err := NewPrompts(map[string]string{PromptKeyExpand: "{{.Missing}}"}, nil)
		if err != nil {
			t.Fatalf("NewPrompts() error = %v", err)
		}
		mock := providers.NewMockClient(`[{"prompt":"x"}]`)
		res := New(Config{Client: mock, Prompts: resolver}).Expand(ctx, "neon", 5, 1)

		if res.Err == nil || res.Err.Kind != providers.KindValidation {
			t.Errorf("Err = %v, want validation", res.Err)
		}
		if mock.RequestCount() != 0 {
			t.Errorf("RequestCount = %d, want 0", mock.RequestCount())
		}
	})

	t.Run("unknown key is rejected", func(t *testing.T) {
		if _, err := NewPrompts(map[string]string{"summarize": "x"}, nil); err == nil {
			t.Error("expected error for unknown prompt key")
		}
	})
}
