package vector

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/clearhaven/passage/internal/models"
	"github.com/clearhaven/passage/internal/passerr"
)

func TestSQLiteStore_roundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passage.db")
	store, err := NewSQLiteStore(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	doc := testDocument("d1")
	chunk := embedded("d1", 0, []float32{0.1, 0.2, 0.3}, map[string]interface{}{"topic": "nutrition", "year": 2024})
	chunk.PageNumbers = []int{1, 2}
	if err := store.Replace(ctx, doc, []models.EmbeddedChunk{chunk}); err != nil {
		t.Fatal(err)
	}

	results, err := store.Query(ctx, []float32{0.1, 0.2, 0.3}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	got := results[0]
	if math.Abs(got.Similarity-1) > 1e-6 {
		t.Errorf("self similarity = %v, want 1", got.Similarity)
	}
	if got.Chunk.Content != chunk.Content || got.Chunk.TokenCount != chunk.TokenCount {
		t.Errorf("chunk did not round-trip: %+v", got.Chunk)
	}
	if len(got.Chunk.PageNumbers) != 2 || got.Chunk.PageNumbers[0] != 1 || got.Chunk.PageNumbers[1] != 2 {
		t.Errorf("page numbers did not round-trip: %v", got.Chunk.PageNumbers)
	}
	if got.Chunk.Metadata["topic"] != "nutrition" {
		t.Errorf("metadata did not round-trip: %v", got.Chunk.Metadata)
	}

	gotDoc, err := store.GetDocument(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if gotDoc.ContentHash != doc.ContentHash || gotDoc.ChunkCount != 1 {
		t.Errorf("document did not round-trip: %+v", gotDoc)
	}
	if gotDoc.IngestedAt.Unix() != doc.IngestedAt.Unix() {
		t.Errorf("ingested at = %v, want %v", gotDoc.IngestedAt, doc.IngestedAt)
	}
}

func TestSQLiteStore_metadataFilterSurvivesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passage.db")
	store, err := NewSQLiteStore(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	_ = store.Insert(ctx, []models.EmbeddedChunk{
		embedded("d1", 0, []float32{1, 0}, map[string]interface{}{"year": 2024}),
		embedded("d1", 1, []float32{0, 1}, map[string]interface{}{"year": 2023}),
	})

	// Stored as JSON, 2024 comes back as float64; the filter must still match.
	results, err := store.Query(ctx, []float32{1, 0}, 10, models.Filter{"year": 2024})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk.ChunkIndex != 0 {
		t.Errorf("int filter across JSON round-trip failed: %+v", results)
	}

	results, err = store.Query(ctx, []float32{1, 0}, 10, models.Filter{"year": 1999})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result for zero-match filter, got %d", len(results))
	}
}

func TestSQLiteStore_persistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passage.db")
	store, err := NewSQLiteStore(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	_ = store.Replace(ctx, testDocument("d1"), []models.EmbeddedChunk{
		embedded("d1", 0, []float32{1, 0}, nil),
		embedded("d1", 1, []float32{0, 1}, nil),
	})
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteStore(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	results, err := reopened.Query(ctx, []float32{1, 0}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk.ChunkIndex != 0 {
		t.Errorf("query after reopen: %+v", results)
	}
	stats, _ := reopened.Stats(ctx)
	if stats.Documents != 1 || stats.Chunks != 2 {
		t.Errorf("stats after reopen = %+v", stats)
	}
}

func TestSQLiteStore_replaceAndDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passage.db")
	store, err := NewSQLiteStore(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	doc := testDocument("d1")
	_ = store.Replace(ctx, doc, []models.EmbeddedChunk{
		embedded("d1", 0, []float32{1, 0}, nil),
		embedded("d1", 1, []float32{0, 1}, nil),
		embedded("d1", 2, []float32{1, 1}, nil),
	})
	doc.ContentHash = "hash-v2"
	if err := store.Replace(ctx, doc, []models.EmbeddedChunk{
		embedded("d1", 0, []float32{0, 1}, nil),
	}); err != nil {
		t.Fatal(err)
	}

	stats, _ := store.Stats(ctx)
	if stats.Chunks != 1 {
		t.Errorf("expected 1 chunk after replace, got %d", stats.Chunks)
	}
	gotDoc, _ := store.GetDocument(ctx, "d1")
	if gotDoc.ContentHash != "hash-v2" || gotDoc.ChunkCount != 1 {
		t.Errorf("registry entry not replaced: %+v", gotDoc)
	}

	if err := store.DeleteDocument(ctx, "d1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetDocument(ctx, "d1"); !errors.Is(err, passerr.ErrNotFound) {
		t.Errorf("GetDocument after delete = %v, want ErrNotFound", err)
	}
	stats, _ = store.Stats(ctx)
	if stats.Documents != 0 || stats.Chunks != 0 {
		t.Errorf("stats after delete = %+v", stats)
	}
}

func TestSQLiteStore_agreesWithMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passage.db")
	sqlite, err := NewSQLiteStore(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer sqlite.Close()
	memory := NewMemoryStore()
	ctx := context.Background()

	chunks := []models.EmbeddedChunk{
		embedded("d1", 0, []float32{0.9, 0.1, 0}, nil),
		embedded("d1", 1, []float32{0.2, 0.8, 0.1}, nil),
		embedded("d2", 0, []float32{0.4, 0.4, 0.4}, nil),
		embedded("d2", 1, []float32{0, 0.1, 0.9}, nil),
	}
	if err := sqlite.Insert(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	if err := memory.Insert(ctx, chunks); err != nil {
		t.Fatal(err)
	}

	query := []float32{0.5, 0.5, 0.2}
	fromSQLite, err := sqlite.Query(ctx, query, 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	fromMemory, err := memory.Query(ctx, query, 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(fromSQLite) != len(fromMemory) {
		t.Fatalf("result counts differ: sqlite %d, memory %d", len(fromSQLite), len(fromMemory))
	}
	for i := range fromMemory {
		a, b := fromSQLite[i], fromMemory[i]
		if a.Chunk.DocID != b.Chunk.DocID || a.Chunk.ChunkIndex != b.Chunk.ChunkIndex {
			t.Errorf("rank %d differs: sqlite %s/%d, memory %s/%d", i, a.Chunk.DocID, a.Chunk.ChunkIndex, b.Chunk.DocID, b.Chunk.ChunkIndex)
		}
		if math.Abs(a.Similarity-b.Similarity) > 1e-6 {
			t.Errorf("rank %d similarity differs: sqlite %v, memory %v", i, a.Similarity, b.Similarity)
		}
	}
}
