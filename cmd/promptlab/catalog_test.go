package main

import (
	"encoding/json"
	"testing"

	"github.com/jackzampolin/promptlab/internal/lora"
	"github.com/jackzampolin/promptlab/internal/providers"
)

func TestSampleCatalog(t *testing.T) {
	var items []lora.Descriptor
	if err := json.Unmarshal(sampleCatalog, &items); err != nil {
		t.Fatalf("sample catalog is not valid JSON: %v", err)
	}
	catalog, err := lora.NewCatalog(items)
	if err != nil {
		t.Fatalf("sample catalog does not load: %v", err)
	}
	if _, ok := catalog.Get(providers.StubLoraID); !ok {
		t.Errorf("sample catalog should contain the stub recommendation %q", providers.StubLoraID)
	}

	best, _, ok := lora.SelectByTags("a neon city at night", catalog)
	if !ok || best.ID != "neon-noir-v2" {
		t.Errorf("SelectByTags() = %+v, %v", best, ok)
	}
}
