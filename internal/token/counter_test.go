package token

import (
	"errors"
	"testing"

	"github.com/clearhaven/passage/internal/passerr"
)

func TestNewCounter_words(t *testing.T) {
	c, err := NewCounter("words")
	if err != nil {
		t.Fatalf("NewCounter(words) error: %v", err)
	}
	if c.Encoding() != EncodingWords {
		t.Errorf("Encoding() = %q", c.Encoding())
	}
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"Vitamin C aids iron absorption.", 5},
		{"a  b\tc\nd", 4},
	}
	for _, tt := range tests {
		if got := c.Count(tt.text); got != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestNewCounter_unknownModel(t *testing.T) {
	_, err := NewCounter("not-a-real-model")
	if err == nil {
		t.Fatal("expected error for unknown model")
	}
	if !errors.Is(err, passerr.ErrConfiguration) {
		t.Errorf("error should be a configuration error, got %v", err)
	}
}

func TestNewCounter_pinnedModel(t *testing.T) {
	c, err := NewCounter("text-embedding-3-small")
	if err != nil {
		t.Fatalf("NewCounter error: %v", err)
	}
	if c.Encoding() != "cl100k_base" {
		t.Errorf("Encoding() = %q, want cl100k_base", c.Encoding())
	}
	if got := c.Count(""); got != 0 {
		t.Errorf("Count(\"\") = %d, want 0", got)
	}
	n := c.Count("Vitamin C aids iron absorption.")
	if n <= 0 {
		t.Fatalf("Count returned %d, want > 0", n)
	}
	// Same input, same count: the counter is pure.
	if again := c.Count("Vitamin C aids iron absorption."); again != n {
		t.Errorf("Count not deterministic: %d then %d", n, again)
	}
	// More text never yields fewer tokens.
	longer := c.Count("Vitamin C aids iron absorption. It is water soluble.")
	if longer <= n {
		t.Errorf("longer text counted %d tokens, shorter counted %d", longer, n)
	}
}
