package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeFormat is the fixed-width UTC layout used for created_at, so that
// lexical order matches chronological order.
const TimeFormat = "2006-01-02T15:04:05.000000Z"

// Record is one saved prompt.
type Record struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Prompt         string   `json:"prompt"`
	NegativePrompt string   `json:"negative_prompt"`
	LoraName       string   `json:"lora_name"`
	LoraID         string   `json:"lora_id"`
	LoraWeight     *float64 `json:"lora_weight"`
	SliderValue    *int     `json:"slider_value"`
	LLMInput       string   `json:"llm_input"`
	LLMRawResponse string   `json:"llm_raw_response"`
	Tags           Tags     `json:"tags"`
	CreatedAt      string   `json:"created_at"`
}

// Tags is an ordered list of tags. It decodes from either a JSON array of
// strings or a comma-separated string.
type Tags []string

// ParseTags splits a comma-separated string, dropping empty entries.
func ParseTags(s string) Tags {
	tags := Tags{}
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// MarshalJSON always encodes an array, never null.
func (t Tags) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(t))
}

// UnmarshalJSON accepts an array, a comma-separated string or null.
func (t *Tags) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*t = Tags{}
		return nil
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = ParseTags(s)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("tags must be an array of strings or a comma-separated string: %w", err)
	}
	if list == nil {
		list = []string{}
	}
	*t = list
	return nil
}

func now() string {
	return time.Now().UTC().Format(TimeFormat)
}
