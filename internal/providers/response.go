package providers

import (
	"encoding/json"
	"fmt"

	openai "github.com/openai/openai-go/v3"
	"github.com/tidwall/gjson"
)

// Shape identifies which of the accepted response layouts a body uses.
type Shape int

const (
	// ShapeUnrecognized is any body that is neither of the accepted shapes.
	ShapeUnrecognized Shape = iota
	// ShapeChatCompletion is an OpenAI-style object with a "choices" array.
	ShapeChatCompletion
	// ShapeVariantList is a bare array of variant objects.
	ShapeVariantList
)

func (s Shape) String() string {
	switch s {
	case ShapeChatCompletion:
		return "chat_completion"
	case ShapeVariantList:
		return "variant_list"
	default:
		return "unrecognized"
	}
}

// finishReasonLength is reported when generation stopped at max_tokens.
const finishReasonLength = "length"

// VariantItem is one element of a variant-list body.
type VariantItem struct {
	Label          string `json:"label,omitempty"`
	Variant        string `json:"variant,omitempty"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

// Response is a decoded LLM body. Exactly one of Content or Variants is
// meaningful, selected by Shape.
type Response struct {
	Shape Shape

	// ShapeChatCompletion
	Content      string
	FinishReason string
	Model        string

	// ShapeVariantList
	Variants []VariantItem
}

// Truncated reports whether the completion stopped at the token limit.
func (r Response) Truncated() bool {
	return r.Shape == ShapeChatCompletion && r.FinishReason == finishReasonLength
}

// DecodeResponse classifies body and decodes it. It fails closed: any body
// that is not one of the accepted shapes yields ShapeUnrecognized and a
// KindMalformed error.
func DecodeResponse(body []byte) (Response, error) {
	const op = "decode_response"

	if !gjson.ValidBytes(body) {
		return Response{}, NewError(KindMalformed, op, fmt.Errorf("invalid JSON body"))
	}

	root := gjson.ParseBytes(body)
	switch {
	case root.IsObject() && root.Get("choices").IsArray():
		var cc openai.ChatCompletion
		if err := json.Unmarshal(body, &cc); err != nil {
			return Response{}, NewError(KindMalformed, op, fmt.Errorf("failed to decode chat completion: %w", err))
		}
		if len(cc.Choices) == 0 {
			return Response{}, NewError(KindMalformed, op, fmt.Errorf("no choices in response (model=%s)", cc.Model))
		}
		first := cc.Choices[0]
		return Response{
			Shape:        ShapeChatCompletion,
			Content:      first.Message.Content,
			FinishReason: string(first.FinishReason),
			Model:        cc.Model,
		}, nil

	case root.IsArray():
		allObjects := true
		root.ForEach(func(_, item gjson.Result) bool {
			allObjects = item.IsObject()
			return allObjects
		})
		if !allObjects {
			return Response{}, NewError(KindMalformed, op, fmt.Errorf("variant list contains non-object elements"))
		}
		var items []VariantItem
		if err := json.Unmarshal(body, &items); err != nil {
			return Response{}, NewError(KindMalformed, op, fmt.Errorf("failed to decode variant list: %w", err))
		}
		return Response{Shape: ShapeVariantList, Variants: items}, nil
	}

	return Response{}, NewError(KindMalformed, op, ErrUnrecognizedShape)
}
