package fileid

import (
	"strings"
	"testing"
)

func TestFileDocID(t *testing.T) {
	id1 := FileDocID("/docs/report.pdf")
	id2 := FileDocID("/docs/report.pdf")
	if id1 != id2 {
		t.Errorf("same path should give same ID: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, prefix) {
		t.Errorf("ID should have prefix %q: got %q", prefix, id1)
	}
	if len(id1) != len(prefix)+64 {
		t.Errorf("ID should be prefix plus hex sha256, got len %d", len(id1))
	}
	if FileDocID("/docs/other.pdf") == id1 {
		t.Error("different paths should give different IDs")
	}
}

func TestFileDocID_cleansPath(t *testing.T) {
	id := FileDocID("/docs/report.pdf")
	for _, variant := range []string{"/docs/./report.pdf", "/docs/sub/../report.pdf", "//docs/report.pdf"} {
		if FileDocID(variant) != id {
			t.Errorf("spelling %q should resolve to the same ID", variant)
		}
	}
}

func TestContentHash(t *testing.T) {
	h1 := ContentHash([]byte("The sun is a star."))
	h2 := ContentHash([]byte("The sun is a star."))
	if h1 != h2 {
		t.Errorf("same content should hash identically: %q vs %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected hex sha256, got len %d", len(h1))
	}
	if ContentHash([]byte("The sun is a star!")) == h1 {
		t.Error("different content should hash differently")
	}
	if len(ContentHash(nil)) != 64 {
		t.Error("empty content still hashes")
	}
}
