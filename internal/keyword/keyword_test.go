package keyword

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clearhaven/passage/internal/models"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex(filepath.Join(t.TempDir(), "keyword.bleve"))
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func testDoc(id, title string) models.Document {
	return models.Document{
		ID:         id,
		Path:       "/docs/" + title,
		Title:      title,
		IngestedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestIndex_searchRebuildsChunk(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	doc := testDoc("file:aaa", "biology.txt")
	chunks := []models.Chunk{
		{
			DocID:       doc.ID,
			ChunkIndex:  0,
			Content:     "The pancreas regulates glucose levels.",
			TokenCount:  6,
			PageNumbers: []int{1},
			Metadata:    map[string]interface{}{"topic": "biology", "year": 2024},
		},
		{
			DocID:       doc.ID,
			ChunkIndex:  1,
			Content:     "Photosynthesis converts light into energy.",
			TokenCount:  5,
			PageNumbers: []int{1, 2},
		},
	}
	if err := idx.IndexDocument(ctx, doc, chunks); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	hits, err := idx.Search(ctx, "glucose", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit for \"glucose\", got %d", len(hits))
	}
	got := hits[0].Chunk
	if got.DocID != doc.ID || got.ChunkIndex != 0 {
		t.Errorf("hit identifies chunk (%q, %d)", got.DocID, got.ChunkIndex)
	}
	if got.Content != chunks[0].Content {
		t.Errorf("content = %q", got.Content)
	}
	if got.TokenCount != 6 {
		t.Errorf("token count = %d", got.TokenCount)
	}
	if len(got.PageNumbers) != 1 || got.PageNumbers[0] != 1 {
		t.Errorf("page numbers = %v", got.PageNumbers)
	}
	if got.Metadata["topic"] != "biology" {
		t.Errorf("metadata topic = %v", got.Metadata["topic"])
	}
	// Stored numerics come back as float64, same as a JSON round trip.
	if got.Metadata["year"] != float64(2024) {
		t.Errorf("metadata year = %v (%T)", got.Metadata["year"], got.Metadata["year"])
	}
	if hits[0].Score <= 0 {
		t.Errorf("score = %v, want > 0", hits[0].Score)
	}

	hits, err = idx.Search(ctx, "photosynthesis", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if pages := hits[0].Chunk.PageNumbers; len(pages) != 2 || pages[0] != 1 || pages[1] != 2 {
		t.Errorf("page numbers = %v", pages)
	}
}

func TestIndex_searchMatchesTitle(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	doc := testDoc("file:bbb", "quarterly-nutrition-report.txt")
	chunks := []models.Chunk{{DocID: doc.ID, ChunkIndex: 0, Content: "Body text without the magic word."}}
	if err := idx.IndexDocument(ctx, doc, chunks); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	hits, err := idx.Search(ctx, "nutrition", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("expected title match, got %d hits", len(hits))
	}
}

func TestIndex_reindexReplacesOldEntries(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	doc := testDoc("file:ccc", "notes.txt")
	oldChunks := []models.Chunk{
		{DocID: doc.ID, ChunkIndex: 0, Content: "stale aardwolf paragraph"},
		{DocID: doc.ID, ChunkIndex: 1, Content: "another stale paragraph"},
		{DocID: doc.ID, ChunkIndex: 2, Content: "third stale paragraph"},
	}
	if err := idx.IndexDocument(ctx, doc, oldChunks); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	newChunks := []models.Chunk{{DocID: doc.ID, ChunkIndex: 0, Content: "fresh evergreen paragraph"}}
	if err := idx.IndexDocument(ctx, doc, newChunks); err != nil {
		t.Fatalf("IndexDocument (reindex): %v", err)
	}

	hits, err := idx.Search(ctx, "aardwolf", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("old generation should be gone, got %d hits", len(hits))
	}
	count, err := idx.EntryCount()
	if err != nil {
		t.Fatalf("EntryCount: %v", err)
	}
	if count != 1 {
		t.Errorf("entry count = %d, want 1", count)
	}
}

func TestIndex_deleteDocument(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	keep := testDoc("file:keep", "keep.txt")
	drop := testDoc("file:drop", "drop.txt")
	if err := idx.IndexDocument(ctx, keep, []models.Chunk{{DocID: keep.ID, ChunkIndex: 0, Content: "shared banana text"}}); err != nil {
		t.Fatal(err)
	}
	if err := idx.IndexDocument(ctx, drop, []models.Chunk{
		{DocID: drop.ID, ChunkIndex: 0, Content: "shared banana text"},
		{DocID: drop.ID, ChunkIndex: 1, Content: "more banana text"},
	}); err != nil {
		t.Fatal(err)
	}

	if err := idx.DeleteDocument(ctx, drop.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	hits, err := idx.Search(ctx, "banana", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Chunk.DocID != keep.ID {
		t.Errorf("expected only the kept document, got %+v", hits)
	}

	// Deleting again, or deleting an unknown ID, is a no-op.
	if err := idx.DeleteDocument(ctx, drop.ID); err != nil {
		t.Errorf("second delete: %v", err)
	}
	if err := idx.DeleteDocument(ctx, "file:never-indexed"); err != nil {
		t.Errorf("unknown delete: %v", err)
	}
}

func TestIndex_persistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyword.bleve")
	ctx := context.Background()

	idx1, err := NewIndex(path)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	doc := testDoc("file:ddd", "persist.txt")
	if err := idx1.IndexDocument(ctx, doc, []models.Chunk{{DocID: doc.ID, ChunkIndex: 0, Content: "durable xylophone entry"}}); err != nil {
		t.Fatal(err)
	}
	if err := idx1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx2, err := NewIndex(path)
	if err != nil {
		t.Fatalf("NewIndex (reopen): %v", err)
	}
	defer func() { _ = idx2.Close() }()

	hits, err := idx2.Search(ctx, "xylophone", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("expected entry to survive reopen, got %d hits", len(hits))
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("index path should exist: %v", err)
	}
}

func TestIndex_searchLimit(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	doc := testDoc("file:eee", "limits.txt")
	chunks := []models.Chunk{
		{DocID: doc.ID, ChunkIndex: 0, Content: "pelican one"},
		{DocID: doc.ID, ChunkIndex: 1, Content: "pelican two"},
		{DocID: doc.ID, ChunkIndex: 2, Content: "pelican three"},
	}
	if err := idx.IndexDocument(ctx, doc, chunks); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search(ctx, "pelican", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("limit 2: got %d hits", len(hits))
	}

	hits, err = idx.Search(ctx, "pelican", 0)
	if err != nil {
		t.Fatalf("Search limit 0: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("limit 0: got %d hits", len(hits))
	}
}
