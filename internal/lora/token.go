package lora

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenPlaceholder marks where an adapter token should be placed in a prompt.
const TokenPlaceholder = "{LORA_TOKEN}"

// FormatToken renders the inline adapter reference, e.g. <lora:id:0.8>.
func FormatToken(id string, weight float64) string {
	return fmt.Sprintf("<lora:%s:%s>", id, strconv.FormatFloat(weight, 'f', -1, 64))
}

// InjectToken replaces the placeholder with the adapter token, or appends
// the token when the prompt has no placeholder.
func InjectToken(prompt, id string, weight float64) string {
	token := FormatToken(id, weight)
	if strings.Contains(prompt, TokenPlaceholder) {
		return strings.ReplaceAll(prompt, TokenPlaceholder, token)
	}
	return prompt + " " + token
}
