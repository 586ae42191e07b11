package expand

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"

	"github.com/jackzampolin/promptlab/internal/lora"
	"github.com/jackzampolin/promptlab/internal/providers"
)

const choiceSchemaJSON = `{
	"type": "object",
	"required": ["selected_lora"],
	"properties": {
		"selected_lora": {"type": "string", "minLength": 1},
		"suggested_weight": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`

// defaultSuggestedWeight is used when the model omits suggested_weight.
const defaultSuggestedWeight = 0.5

var (
	choiceSchemaOnce sync.Once
	choiceSchema     *jsonschema.Schema
	choiceSchemaErr  error
)

func loadChoiceSchema() (*jsonschema.Schema, error) {
	choiceSchemaOnce.Do(func() {
		choiceSchema, choiceSchemaErr = providers.CompileSchema("lora_choice.json", []byte(choiceSchemaJSON))
	})
	return choiceSchema, choiceSchemaErr
}

// ChoiceResult is the outcome of asking the LLM to pick a LORA.
type ChoiceResult struct {
	SelectedLora    string           `json:"selected_lora,omitempty"`
	SuggestedWeight float64          `json:"suggested_weight,omitempty"`
	Err             *providers.Error `json:"-"`
	RawResponse     string           `json:"raw_response,omitempty"`
}

// OK reports whether a LORA was selected.
func (r ChoiceResult) OK() bool {
	return r.Err == nil && r.SelectedLora != ""
}

type choicePayload struct {
	SelectedLora    string   `json:"selected_lora"`
	SuggestedWeight *float64 `json:"suggested_weight"`
}

// ChooseLoraViaLLM asks the LLM to pick the best entry of catalog for idea.
// The answer may be the bare response body or the content of the first
// choice, optionally inside a code fence.
func (a *Adapter) ChooseLoraViaLLM(ctx context.Context, idea string, catalog lora.Catalog) ChoiceResult {
	op := string(providers.PurposeChooseLora)

	if strings.TrimSpace(idea) == "" {
		a.logger.Warn("rejected empty idea for lora choice")
		return ChoiceResult{Err: providers.NewError(providers.KindValidation, op, providers.ErrEmptyInput)}
	}
	if len(catalog) == 0 {
		return ChoiceResult{Err: providers.NewError(providers.KindValidation, op, fmt.Errorf("empty catalog"))}
	}

	prompt, perr := a.render(PromptKeyChooseLora, ChooseData{Idea: idea, Catalog: describeCatalog(catalog)})
	if perr != nil {
		return ChoiceResult{Err: perr}
	}

	resp, body, perr := a.complete(ctx, &providers.CompletionRequest{
		Prompt:      prompt,
		Temperature: chooseTemperature,
		MaxTokens:   chooseMaxTokens,
		Purpose:     providers.PurposeChooseLora,
		Idea:        idea,
	}, decodeChoice)
	res := ChoiceResult{RawResponse: string(body)}
	if perr != nil {
		res.Err = perr
		return res
	}

	payload, err := parseChoice(resp, body)
	if err != nil {
		res.Err = providers.NewError(providers.KindMalformed, op, err)
		a.logger.Warn("llm lora choice unusable", "error", err)
		return res
	}

	res.SelectedLora = payload.SelectedLora
	res.SuggestedWeight = defaultSuggestedWeight
	if payload.SuggestedWeight != nil {
		res.SuggestedWeight = *payload.SuggestedWeight
	}
	return res
}

// ChooseLora implements lora.Chooser.
func (a *Adapter) ChooseLora(ctx context.Context, idea string, catalog lora.Catalog) (lora.Choice, bool) {
	res := a.ChooseLoraViaLLM(ctx, idea, catalog)
	if !res.OK() {
		return lora.Choice{}, false
	}
	return lora.Choice{LoraID: res.SelectedLora, Weight: res.SuggestedWeight}, true
}

// decodeChoice accepts a bare selection object in addition to the shapes
// DecodeResponse knows.
func decodeChoice(body []byte) (providers.Response, error) {
	if gjson.ValidBytes(body) && gjson.GetBytes(body, "selected_lora").Exists() {
		return providers.Response{Shape: providers.ShapeUnrecognized}, nil
	}
	return providers.DecodeResponse(body)
}

func parseChoice(resp providers.Response, body []byte) (choicePayload, error) {
	content := string(body)
	if resp.Shape == providers.ShapeChatCompletion {
		content = resp.Content
	}

	parsed, err := providers.ParseStructuredJSON(content)
	if err != nil {
		return choicePayload{}, err
	}

	schema, err := loadChoiceSchema()
	if err != nil {
		return choicePayload{}, err
	}
	if err := providers.ValidateStructuredJSON(schema, parsed); err != nil {
		return choicePayload{}, err
	}

	var payload choicePayload
	if err := json.Unmarshal(parsed, &payload); err != nil {
		return choicePayload{}, fmt.Errorf("failed to decode lora choice: %w", err)
	}
	return payload, nil
}

func describeCatalog(catalog lora.Catalog) string {
	lines := make([]string, 0, len(catalog))
	for _, d := range catalog {
		desc := d.Description
		if desc == "" {
			desc = "No description"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", d.ID, desc))
	}
	return strings.Join(lines, "\n")
}
