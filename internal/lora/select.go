package lora

import (
	"context"
	"log/slog"
	"math"
	"regexp"
	"strings"
)

// Method records how a selection was made.
type Method string

const (
	MethodTags Method = "tags"
	MethodLLM  Method = "llm"
	MethodNone Method = "none"
)

const (
	minWeight = 0.05
	maxWeight = 0.95
)

var tokenRe = regexp.MustCompile(`[a-z0-9-]+`)

// Selection is the outcome of choosing an adapter for an idea. The
// identifying fields are nil when Method is MethodNone.
type Selection struct {
	LoraID   *string  `json:"lora_id"`
	LoraName *string  `json:"lora_name"`
	Weight   *float64 `json:"weight"`
	Method   Method   `json:"method"`
	Score    int      `json:"score"`
}

// Matched reports whether an adapter was chosen.
func (s Selection) Matched() bool {
	return s.LoraID != nil
}

// Choice is a recommendation produced by a Chooser.
type Choice struct {
	LoraID string
	Weight float64
}

// Chooser is consulted when no catalog entry shares a tag with the idea.
type Chooser interface {
	ChooseLora(ctx context.Context, idea string, catalog Catalog) (Choice, bool)
}

// Tokenize lowercases text and returns its distinct [a-z0-9-]+ tokens in
// first-seen order.
func Tokenize(text string) []string {
	found := tokenRe.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(found))
	tokens := make([]string, 0, len(found))
	for _, tok := range found {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	return tokens
}

// SliderToWeightHint biases a default weight by creativity, clamps it to
// [0.05, 0.95] and rounds to two decimals.
func SliderToWeightHint(creativity int, defaultWeight float64) float64 {
	w := defaultWeight
	switch {
	case creativity <= 2:
		w += 0.3
	case creativity <= 5:
		w += 0.1
	case creativity <= 8:
		w -= 0.1
	default:
		w -= 0.3
	}
	w = math.Max(minWeight, math.Min(maxWeight, w))
	return round2(w)
}

// SelectByTags returns the entry whose tags overlap the idea tokens the
// most. Scores are compared with strict >, so the first maximal entry in
// catalog order wins ties. ok is false when no entry scores above zero.
func SelectByTags(idea string, catalog Catalog) (best Descriptor, score int, ok bool) {
	tokens := make(map[string]struct{})
	for _, tok := range Tokenize(idea) {
		tokens[tok] = struct{}{}
	}

	for _, d := range catalog {
		s := overlap(tokens, d.Tags)
		if s > score {
			score = s
			best = d
			ok = true
		}
	}
	return best, score, ok
}

func overlap(tokens map[string]struct{}, tags []string) int {
	counted := make(map[string]struct{}, len(tags))
	n := 0
	for _, t := range tags {
		t = strings.ToLower(t)
		if _, dup := counted[t]; dup {
			continue
		}
		counted[t] = struct{}{}
		if _, ok := tokens[t]; ok {
			n++
		}
	}
	return n
}

// Selector chooses adapters, falling back to a Chooser when tags don't match.
type Selector struct {
	chooser Chooser
	logger  *slog.Logger
}

// NewSelector creates a selector. chooser may be nil, which disables the fallback.
func NewSelector(chooser Chooser, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{chooser: chooser, logger: logger}
}

// Select picks an adapter for idea from catalog.
func (s *Selector) Select(ctx context.Context, idea string, catalog Catalog, creativity int, allowFallback bool) Selection {
	if best, score, ok := SelectByTags(idea, catalog); ok {
		weight := SliderToWeightHint(creativity, best.DefaultWeight)
		return Selection{
			LoraID:   ptr(best.ID),
			LoraName: ptr(best.Name),
			Weight:   ptr(weight),
			Method:   MethodTags,
			Score:    score,
		}
	}

	if allowFallback && s.chooser != nil && len(catalog) > 0 {
		choice, ok := s.chooser.ChooseLora(ctx, idea, catalog)
		if ok {
			if d, found := catalog.Get(choice.LoraID); found {
				return Selection{
					LoraID:   ptr(d.ID),
					LoraName: ptr(d.Name),
					Weight:   ptr(round2(choice.Weight)),
					Method:   MethodLLM,
					Score:    0,
				}
			}
			s.logger.Warn("fallback chose an adapter outside the catalog", "lora_id", choice.LoraID)
		}
	}

	return None()
}

// None returns the no-match sentinel.
func None() Selection {
	return Selection{Method: MethodNone}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func ptr[T any](v T) *T {
	return &v
}
