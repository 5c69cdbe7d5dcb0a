package dedup

import (
	"math"
	"testing"

	"github.com/ainews/backend/internal/storage/models"
)

func doc(title string) models.ClassifiedDocument {
	return models.ClassifiedDocument{Document: models.Document{Title: title}}
}

func titles(docs []models.ClassifiedDocument) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Title
	}
	return out
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want float64
	}{
		{"New GPT model released", "New GPT model released today", 0.8},
		{"New GPT model released", "new gpt MODEL released!", 1},
		{"Robotics breakthrough in 2024", "New GPT model released", 0},
		{"the and of", "anything at all", 0},
		{"", "", 0},
		{"OpenAI ships agents", "OpenAI ships tools", 0.5},
	}

	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDedupeKeepsFirstSeen(t *testing.T) {
	t.Parallel()

	in := []models.ClassifiedDocument{
		doc("New GPT model released"),
		doc("New GPT model released today"),
		doc("Robotics breakthrough in 2024"),
	}

	got := titles(New(0.7).Dedupe(in))
	want := []string{"New GPT model released", "Robotics breakthrough in 2024"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDedupeWithReport(t *testing.T) {
	t.Parallel()

	in := []models.ClassifiedDocument{
		doc("Robotics breakthrough in 2024"),
		doc("New GPT model released"),
		doc("New GPT model released today"),
		doc("Robotics breakthrough in 2024!"),
	}

	kept, dropped := New(0.7).DedupeWithReport(in)
	if len(kept) != 2 || len(dropped) != 2 {
		t.Fatalf("expected 2 kept and 2 dropped, got %d and %d", len(kept), len(dropped))
	}
	if dropped[0].Item.Title != "New GPT model released today" || dropped[0].KeptIndex != 1 {
		t.Fatalf("unexpected first drop: %+v", dropped[0])
	}
	if dropped[1].KeptIndex != 0 || dropped[1].Similarity != 1 {
		t.Fatalf("unexpected second drop: %+v", dropped[1])
	}
}

func TestDedupeEmptyTitlesNeverCollapse(t *testing.T) {
	t.Parallel()

	in := []models.ClassifiedDocument{doc(""), doc(""), doc("the of and")}
	if got := New(0.7).Dedupe(in); len(got) != 3 {
		t.Fatalf("titles without tokens must not be treated as duplicates, kept %d", len(got))
	}
}

func TestThresholdFallback(t *testing.T) {
	t.Parallel()

	if New(0).Threshold() != DefaultThreshold || New(1.5).Threshold() != DefaultThreshold {
		t.Fatalf("expected invalid thresholds to fall back to default")
	}
	d := New(0.9)
	if d.IsDuplicate("New GPT model released", "New GPT model released today") {
		t.Fatalf("0.8 similarity must not be a duplicate at 0.9")
	}
}

func TestFilterGeneric(t *testing.T) {
	t.Parallel()

	kept, _ := Filter(New(0.7), []string{"a b c", "a b c", "d e f"}, func(s string) string { return s })
	if len(kept) != 2 {
		t.Fatalf("expected 2 kept strings, got %v", kept)
	}
}
