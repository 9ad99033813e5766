package keyword

import (
	"context"
	"testing"

	"github.com/clearhaven/passage/internal/models"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"glucose", "glucose", 0},
		{"glucose", "glucoze", 1},
		{"glucose", "glucse", 1},
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"abc", "", 3},
		{"café", "cafe", 1},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSuggest(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	doc := testDoc("file:dict", "terms.txt")
	chunks := []models.Chunk{
		{DocID: doc.ID, ChunkIndex: 0, Content: "glucose insulin pancreas"},
		{DocID: doc.ID, ChunkIndex: 1, Content: "glucose metabolism"},
		{DocID: doc.ID, ChunkIndex: 2, Content: "glucose tolerance"},
	}
	if err := idx.IndexDocument(ctx, doc, chunks); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	suggestions, err := idx.Suggest("glucoze", 3)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(suggestions) == 0 || suggestions[0] != "glucose" {
		t.Errorf("Suggest(\"glucoze\") = %v, want glucose first", suggestions)
	}

	// Input is lowercased to match the analyzer.
	suggestions, err = idx.Suggest("Glucoze", 3)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(suggestions) == 0 || suggestions[0] != "glucose" {
		t.Errorf("Suggest(\"Glucoze\") = %v, want glucose first", suggestions)
	}

	// Nothing within edit distance 2.
	suggestions, err = idx.Suggest("zzzzzzz", 3)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(suggestions) != 0 {
		t.Errorf("Suggest(\"zzzzzzz\") = %v, want none", suggestions)
	}

	// An exact dictionary term is not its own suggestion.
	suggestions, err = idx.Suggest("glucose", 3)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	for _, s := range suggestions {
		if s == "glucose" {
			t.Errorf("exact term suggested back: %v", suggestions)
		}
	}

	if s, err := idx.Suggest("", 3); err != nil || s != nil {
		t.Errorf("empty term: got %v, %v", s, err)
	}
	if s, err := idx.Suggest("glucoze", 0); err != nil || s != nil {
		t.Errorf("max 0: got %v, %v", s, err)
	}
}

func TestHasTerm(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	doc := testDoc("file:terms", "terms.txt")
	if err := idx.IndexDocument(ctx, doc, []models.Chunk{
		{DocID: doc.ID, ChunkIndex: 0, Content: "glucose glucoside"},
	}); err != nil {
		t.Fatal(err)
	}

	ok, err := idx.HasTerm("glucose")
	if err != nil || !ok {
		t.Errorf("HasTerm(glucose) = %v, %v; want true", ok, err)
	}
	// A strict prefix of an indexed term is not itself a term.
	ok, err = idx.HasTerm("gluco")
	if err != nil || ok {
		t.Errorf("HasTerm(gluco) = %v, %v; want false", ok, err)
	}
	ok, err = idx.HasTerm("fructose")
	if err != nil || ok {
		t.Errorf("HasTerm(fructose) = %v, %v; want false", ok, err)
	}
}

func TestSuggestQuery(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	doc := testDoc("file:corpus", "corpus.txt")
	if err := idx.IndexDocument(ctx, doc, []models.Chunk{
		{DocID: doc.ID, ChunkIndex: 0, Content: "glucose regulates insulin"},
	}); err != nil {
		t.Fatal(err)
	}

	corrected, ok := idx.SuggestQuery("glucoze insulin")
	if !ok {
		t.Fatal("expected a correction for glucoze")
	}
	if corrected != "glucose insulin" {
		t.Errorf("corrected = %q, want %q", corrected, "glucose insulin")
	}

	// Every term known: nothing to correct.
	if corrected, ok := idx.SuggestQuery("glucose insulin"); ok {
		t.Errorf("unexpected correction %q", corrected)
	}

	// Nothing close enough: term kept, no correction claimed.
	if corrected, ok := idx.SuggestQuery("zzzzzzz"); ok {
		t.Errorf("unexpected correction %q", corrected)
	}
}
