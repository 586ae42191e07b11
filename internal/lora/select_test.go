package lora

import (
	"context"
	"reflect"
	"testing"
)

type fakeChooser struct {
	choice Choice
	ok     bool
	calls  int
}

func (f *fakeChooser) ChooseLora(ctx context.Context, idea string, catalog Catalog) (Choice, bool) {
	f.calls++
	return f.choice, f.ok
}

func testCatalog() Catalog {
	return Catalog{
		{ID: "city-neon", Name: "Neon City", Tags: []string{"city", "neon"}, DefaultWeight: 0.5},
		{ID: "forest", Name: "Deep Forest", Tags: []string{"forest"}, DefaultWeight: 0.7},
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Neon city, NEON street! sci-fi 2077")
	want := []string{"neon", "city", "street", "sci-fi", "2077"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
	if len(Tokenize("  ,,, ")) != 0 {
		t.Error("expected no tokens for punctuation-only text")
	}
}

func TestSliderToWeightHint(t *testing.T) {
	tests := []struct {
		creativity int
		def        float64
		want       float64
	}{
		{0, 0.5, 0.8},
		{2, 0.5, 0.8},
		{3, 0.5, 0.6},
		{5, 0.5, 0.6},
		{6, 0.5, 0.4},
		{8, 0.5, 0.4},
		{9, 0.5, 0.2},
		{10, 0.5, 0.2},
		{0, 0.9, 0.95},
		{10, 0.1, 0.05},
	}
	for _, tt := range tests {
		if got := SliderToWeightHint(tt.creativity, tt.def); got != tt.want {
			t.Errorf("SliderToWeightHint(%d, %v) = %v, want %v", tt.creativity, tt.def, got, tt.want)
		}
	}

	for c := 0; c <= 10; c++ {
		for _, def := range []float64{0, 0.25, 0.5, 0.75, 1} {
			got := SliderToWeightHint(c, def)
			if got < 0.05 || got > 0.95 {
				t.Errorf("SliderToWeightHint(%d, %v) = %v outside [0.05, 0.95]", c, def, got)
			}
		}
	}
}

func TestSelectByTags(t *testing.T) {
	t.Run("picks best overlap", func(t *testing.T) {
		best, score, ok := SelectByTags("neon city street", testCatalog())
		if !ok {
			t.Fatal("expected a match")
		}
		if best.ID != "city-neon" || score != 2 {
			t.Errorf("got %s score %d, want city-neon score 2", best.ID, score)
		}
	})

	t.Run("no overlap", func(t *testing.T) {
		if _, _, ok := SelectByTags("desert sunset", testCatalog()); ok {
			t.Error("expected no match")
		}
	})

	// Ties go to the first maximal entry in catalog order.
	t.Run("tie keeps first entry", func(t *testing.T) {
		catalog := Catalog{
			{ID: "a", Tags: []string{"rain"}},
			{ID: "b", Tags: []string{"rain"}},
		}
		best, score, _ := SelectByTags("rain", catalog)
		if best.ID != "a" || score != 1 {
			t.Errorf("got %s score %d, want a score 1", best.ID, score)
		}

		reversed := Catalog{catalog[1], catalog[0]}
		best, _, _ = SelectByTags("rain", reversed)
		if best.ID != "b" {
			t.Errorf("got %s, want b after reordering", best.ID)
		}
	})

	t.Run("duplicate tags count once", func(t *testing.T) {
		catalog := Catalog{{ID: "a", Tags: []string{"rain", "rain"}}}
		_, score, _ := SelectByTags("rain rain", catalog)
		if score != 1 {
			t.Errorf("score = %d, want 1", score)
		}
	})
}

func TestSelector_Select(t *testing.T) {
	ctx := context.Background()

	t.Run("tag match", func(t *testing.T) {
		chooser := &fakeChooser{}
		sel := NewSelector(chooser, nil).Select(ctx, "neon city street", testCatalog(), 5, true)

		if sel.Method != MethodTags {
			t.Fatalf("Method = %s, want tags", sel.Method)
		}
		if *sel.LoraID != "city-neon" || *sel.LoraName != "Neon City" {
			t.Errorf("got %s/%s", *sel.LoraID, *sel.LoraName)
		}
		if sel.Score != 2 {
			t.Errorf("Score = %d, want 2", sel.Score)
		}
		if *sel.Weight != 0.6 {
			t.Errorf("Weight = %v, want 0.6", *sel.Weight)
		}
		if chooser.calls != 0 {
			t.Error("fallback should not be consulted on a tag match")
		}
	})

	t.Run("fallback names a catalog entry", func(t *testing.T) {
		chooser := &fakeChooser{choice: Choice{LoraID: "forest", Weight: 0.456}, ok: true}
		sel := NewSelector(chooser, nil).Select(ctx, "desert sunset", testCatalog(), 5, true)

		if sel.Method != MethodLLM {
			t.Fatalf("Method = %s, want llm", sel.Method)
		}
		if *sel.LoraID != "forest" {
			t.Errorf("LoraID = %s, want forest", *sel.LoraID)
		}
		if *sel.Weight != 0.46 {
			t.Errorf("Weight = %v, want 0.46", *sel.Weight)
		}
		if sel.Score != 0 {
			t.Errorf("Score = %d, want 0", sel.Score)
		}
	})

	t.Run("fallback names an unknown entry", func(t *testing.T) {
		chooser := &fakeChooser{choice: Choice{LoraID: "missing", Weight: 0.5}, ok: true}
		sel := NewSelector(chooser, nil).Select(ctx, "desert sunset", testCatalog(), 5, true)
		assertNone(t, sel)
	})

	t.Run("fallback disabled", func(t *testing.T) {
		chooser := &fakeChooser{choice: Choice{LoraID: "forest", Weight: 0.5}, ok: true}
		sel := NewSelector(chooser, nil).Select(ctx, "desert sunset", testCatalog(), 5, false)
		assertNone(t, sel)
		if chooser.calls != 0 {
			t.Error("disabled fallback should not be consulted")
		}
	})

	t.Run("empty catalog", func(t *testing.T) {
		chooser := &fakeChooser{choice: Choice{LoraID: "forest", Weight: 0.5}, ok: true}
		sel := NewSelector(chooser, nil).Select(ctx, "neon city", nil, 5, true)
		assertNone(t, sel)
	})

	t.Run("fallback fails", func(t *testing.T) {
		sel := NewSelector(&fakeChooser{}, nil).Select(ctx, "desert sunset", testCatalog(), 5, true)
		assertNone(t, sel)
	})

	t.Run("nil chooser", func(t *testing.T) {
		sel := NewSelector(nil, nil).Select(ctx, "desert sunset", testCatalog(), 5, true)
		assertNone(t, sel)
	})
}

func assertNone(t *testing.T, sel Selection) {
	t.Helper()
	if sel.Method != MethodNone {
		t.Errorf("Method = %s, want none", sel.Method)
	}
	if sel.LoraID != nil || sel.LoraName != nil || sel.Weight != nil {
		t.Errorf("expected nil identifying fields, got %+v", sel)
	}
	if sel.Score != 0 {
		t.Errorf("Score = %d, want 0", sel.Score)
	}
	if sel.Matched() {
		t.Error("Matched() should be false")
	}
}
