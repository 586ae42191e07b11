package expand

import (
	"log/slog"

	"github.com/jackzampolin/promptlab/internal/prompts"
)

// Prompt keys registered by NewPrompts.
const (
	PromptKeyExpand     = "expand"
	PromptKeyChooseLora = "choose_lora"
)

const expandTemplate = `Expand the following idea into {{.Variants}} different prompts: {{.Idea}}`

const chooseTemplate = `Given the idea: {{printf "%q" .Idea}}, choose the best LORA from the following list:
{{.Catalog}}
Return a JSON with selected_lora and suggested_weight.`

// ExpandData is passed to the expand template.
type ExpandData struct {
	Idea     string
	Variants int
}

// ChooseData is passed to the choose_lora template. Catalog holds one
// "id: description" line per entry.
type ChooseData struct {
	Idea    string
	Catalog string
}

// NewPrompts returns a resolver holding the adapter's built-in templates
// with overrides applied.
func NewPrompts(overrides map[string]string, logger *slog.Logger) (*prompts.Resolver, error) {
	r := prompts.NewResolver(logger)
	builtins := []prompts.EmbeddedPrompt{
		{Key: PromptKeyExpand, Text: expandTemplate, Description: "Expands an idea into prompt variants"},
		{Key: PromptKeyChooseLora, Text: chooseTemplate, Description: "Asks for a LORA when no catalog tags match"},
	}
	for _, p := range builtins {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	if len(overrides) > 0 {
		if err := r.SetOverrides(overrides); err != nil {
			return nil, err
		}
	}
	return r, nil
}
