// Package lora loads the style adapter catalog and picks an adapter for an idea.
package lora

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Descriptor is one style adapter in the catalog.
type Descriptor struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags          []string `json:"tags" yaml:"tags"`
	DefaultWeight float64  `json:"default_weight" yaml:"default_weight"`
}

// Catalog is an ordered, read-only list of descriptors. Order matters:
// selection ties are broken by catalog position.
type Catalog []Descriptor

// LoadCatalog reads a catalog from a JSON or YAML file (by extension).
// Tags are lowercased on load.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var items []Descriptor
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &items)
	default:
		err = json.Unmarshal(data, &items)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	return NewCatalog(items)
}

// NewCatalog validates items and normalizes their tags.
func NewCatalog(items []Descriptor) (Catalog, error) {
	seen := make(map[string]struct{}, len(items))
	out := make(Catalog, 0, len(items))
	for i, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("catalog entry %d has no id", i)
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog id %q", item.ID)
		}
		seen[item.ID] = struct{}{}

		if item.DefaultWeight < 0 || item.DefaultWeight > 1 {
			return nil, fmt.Errorf("catalog entry %q: default_weight %v outside [0,1]", item.ID, item.DefaultWeight)
		}

		tags := make([]string, len(item.Tags))
		for j, t := range item.Tags {
			tags[j] = strings.ToLower(t)
		}
		item.Tags = tags
		out = append(out, item)
	}
	return out, nil
}

// Names returns the display names of all entries, in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, d := range c {
		names[i] = d.Name
	}
	return names
}

// Get returns the entry with the given id.
func (c Catalog) Get(id string) (Descriptor, bool) {
	for _, d := range c {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// SearchByTags returns every entry sharing at least one tag with tags,
// in catalog order.
func (c Catalog) SearchByTags(tags []string) Catalog {
	want := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		want[strings.ToLower(t)] = struct{}{}
	}

	var matched Catalog
	for _, d := range c {
		for _, t := range d.Tags {
			if _, ok := want[t]; ok {
				matched = append(matched, d)
				break
			}
		}
	}
	return matched
}
