package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
)

// variablePattern matches field references such as {{.Idea}} or {{ .Idea }}
// and the argument of {{printf "%q" .Idea}}.
var variablePattern = regexp.MustCompile(`\{\{[^}]*?\.([A-Za-z_][A-Za-z0-9_.]*)[^}]*\}\}`)

// ExtractVariables returns the sorted, distinct field names a template
// references.
func ExtractVariables(text string) []string {
	seen := make(map[string]bool)
	var vars []string
	for _, m := range variablePattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			vars = append(vars, m[1])
		}
	}
	sort.Strings(vars)
	return vars
}

// HashText returns the hex SHA256 of text, used to tell overrides apart.
func HashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
