package prompts

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"text/template"
)

// ErrUnknownKey is returned for keys that were never registered.
var ErrUnknownKey = errors.New("unknown prompt key")

type entry struct {
	embedded EmbeddedPrompt
	override string
	tmpl     *template.Template
}

// Resolver maps prompt keys to their effective templates.
type Resolver struct {
	mu      sync.RWMutex
	entries map[string]*entry
	logger  *slog.Logger
}

// NewResolver creates an empty resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Register adds a built-in template. It returns an error if the text does
// not parse.
func (r *Resolver) Register(p EmbeddedPrompt) error {
	tmpl, err := parse(p.Key, p.Text)
	if err != nil {
		return err
	}
	if p.Hash == "" {
		p.Hash = HashText(p.Text)
	}
	if p.Variables == nil {
		p.Variables = ExtractVariables(p.Text)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[p.Key] = &entry{embedded: p, tmpl: tmpl}
	r.logger.Debug("registered prompt", "key", p.Key, "vars", p.Variables)
	return nil
}

// SetOverrides replaces all overrides. Every key must be registered and
// every template must parse; on error no override is applied.
func (r *Resolver) SetOverrides(overrides map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	parsed := make(map[string]*template.Template, len(overrides))
	for key, text := range overrides {
		if _, ok := r.entries[key]; !ok {
			return fmt.Errorf("%w %q", ErrUnknownKey, key)
		}
		tmpl, err := parse(key, text)
		if err != nil {
			return err
		}
		parsed[key] = tmpl
	}

	for key, e := range r.entries {
		if tmpl, ok := parsed[key]; ok {
			e.override = overrides[key]
			e.tmpl = tmpl
			r.logger.Info("prompt overridden", "key", key)
			continue
		}
		e.override = ""
		e.tmpl, _ = parse(key, e.embedded.Text)
	}
	return nil
}

// Resolve returns the effective template for key.
func (r *Resolver) Resolve(key string) (*Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	p := e.prompt()
	return &p, nil
}

// Render executes the effective template for key with data.
func (r *Resolver) Render(key string, data any) (string, error) {
	r.mu.RLock()
	e, ok := r.entries[key]
	var tmpl *template.Template
	if ok {
		tmpl = e.tmpl
	}
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownKey, key)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", key, err)
	}
	return b.String(), nil
}

// All returns every effective template sorted by key.
func (r *Resolver) All() []Prompt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Prompt, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.prompt())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (e *entry) prompt() Prompt {
	p := Prompt{
		Key:          e.embedded.Key,
		Text:         e.embedded.Text,
		Description:  e.embedded.Description,
		Variables:    e.embedded.Variables,
		Hash:         e.embedded.Hash,
		EmbeddedHash: e.embedded.Hash,
	}
	if e.override != "" {
		p.Text = e.override
		p.Variables = ExtractVariables(e.override)
		p.Hash = HashText(e.override)
		p.IsOverride = true
	}
	return p
}

func parse(key, text string) (*template.Template, error) {
	tmpl, err := template.New(key).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid template for prompt %s: %w", key, err)
	}
	return tmpl, nil
}
