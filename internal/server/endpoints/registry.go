package endpoints

import (
	"github.com/jackzampolin/promptlab/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},
		&MetricsEndpoint{},

		// Generation
		&GenerateEndpoint{},
		&ExpandEndpoint{},

		// LORA catalog
		&ListLorasEndpoint{},
		&GetLoraEndpoint{},
		&SelectLoraEndpoint{},
		&ChooseLoraEndpoint{},

		// Saved prompts
		&SavePromptEndpoint{},
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
		&DeletePromptEndpoint{},
		&ExportPromptEndpoint{},

		// LLM call history
		&ListLLMCallsEndpoint{},
		&GetLLMCallEndpoint{},
		&LLMCallCountsEndpoint{},

		// Request templates
		&ListTemplatesEndpoint{},
		&GetTemplateEndpoint{},

		// Settings
		&ListSettingsEndpoint{},
		&GetSettingEndpoint{},
	}
}
