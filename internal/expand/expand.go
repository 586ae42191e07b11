package expand

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackzampolin/promptlab/internal/providers"
)

// Variant is one expanded prompt.
type Variant struct {
	Label          string `json:"label"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

// Result is the outcome of one expansion. Variants is never nil; Err is
// set when the expansion failed or produced nothing usable.
type Result struct {
	Variants    []Variant        `json:"variants"`
	Err         *providers.Error `json:"-"`
	Temperature float64          `json:"temperature"`
	Input       string           `json:"input"`
	RawResponse string           `json:"raw_response,omitempty"`
}

// OK reports whether the expansion succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Expand asks the LLM to expand idea into n variants (DefaultVariants when
// n <= 0). Blank ideas are rejected without a call.
func (a *Adapter) Expand(ctx context.Context, idea string, creativity, n int) Result {
	res := Result{
		Variants:    []Variant{},
		Temperature: SliderToTemp(creativity),
		Input:       idea,
	}

	if strings.TrimSpace(idea) == "" {
		res.Err = providers.NewError(providers.KindValidation, string(providers.PurposeExpand), providers.ErrEmptyInput)
		a.logger.Warn("rejected empty idea", "kind", res.Err.Kind)
		return res
	}
	if n <= 0 {
		n = a.variants
	}

	prompt, perr := a.render(PromptKeyExpand, ExpandData{Idea: idea, Variants: n})
	if perr != nil {
		res.Err = perr
		return res
	}

	resp, body, err := a.complete(ctx, &providers.CompletionRequest{
		Prompt:      prompt,
		Temperature: res.Temperature,
		MaxTokens:   a.maxTokens,
		Purpose:     providers.PurposeExpand,
		Idea:        idea,
		Variants:    n,
	}, providers.DecodeResponse)
	res.RawResponse = string(body)
	if err != nil {
		res.Err = err
		a.metrics.RecordVariants(0)
		return res
	}

	res.Variants = normalize(resp)
	if len(res.Variants) == 0 {
		res.Err = providers.NewError(providers.KindMalformed, string(providers.PurposeExpand), fmt.Errorf("response contained no prompts"))
		a.logger.Warn("llm response contained no prompts", "shape", resp.Shape)
	}
	a.metrics.RecordVariants(len(res.Variants))
	return res
}

// ExpandPrompt returns the variants for idea, or an empty slice on any
// failure.
func (a *Adapter) ExpandPrompt(ctx context.Context, idea string, creativity int) []Variant {
	return a.Expand(ctx, idea, creativity, 0).Variants
}

// normalize converts a decoded response into variants with unique labels.
func normalize(resp providers.Response) []Variant {
	variants := []Variant{}
	switch resp.Shape {
	case providers.ShapeChatCompletion:
		if content := strings.TrimSpace(resp.Content); content != "" {
			variants = append(variants, Variant{Label: "variant_1", Prompt: content})
		}

	case providers.ShapeVariantList:
		used := make(map[string]int, len(resp.Variants))
		for i, item := range resp.Variants {
			prompt := strings.TrimSpace(item.Prompt)
			if prompt == "" {
				continue
			}
			label := strings.TrimSpace(item.Label)
			if label == "" {
				label = strings.TrimSpace(item.Variant)
			}
			if label == "" {
				label = fmt.Sprintf("variant_%d", i+1)
			}
			variants = append(variants, Variant{
				Label:          uniqueLabel(label, used),
				Prompt:         prompt,
				NegativePrompt: strings.TrimSpace(item.NegativePrompt),
			})
		}
	}
	return variants
}

func uniqueLabel(label string, used map[string]int) string {
	if _, taken := used[label]; !taken {
		used[label] = 1
		return label
	}
	for {
		used[label]++
		candidate := fmt.Sprintf("%s_%d", label, used[label])
		if _, taken := used[candidate]; !taken {
			used[candidate] = 1
			return candidate
		}
	}
}
