// Package vector provides chunk stores with nearest-neighbor retrieval.
//
// A Store keeps embedded chunks together with the document registry and
// serves cosine-similarity queries over them. Four backends are provided:
// memory (reference implementation), sqlite, pgvector, and qdrant. All
// backends must rank identically to the in-memory reference within float
// tolerance.
package vector

import (
	"context"
	"sort"

	"github.com/clearhaven/passage/internal/models"
)

// Store persists embedded chunks and serves similarity queries over them.
//
// Replace swaps a document's chunks and registry entry as one generation:
// readers observe either the complete prior generation or the complete new
// one. Query returns up to k chunks ranked by descending similarity with
// ties broken by (DocID, ChunkIndex) ascending, restricted to metadata
// matching filter; no matches is an empty slice, not an error. k <= 0
// returns an empty slice. DeleteDocument is idempotent.
type Store interface {
	Insert(ctx context.Context, chunks []models.EmbeddedChunk) error
	Replace(ctx context.Context, doc models.Document, chunks []models.EmbeddedChunk) error
	Query(ctx context.Context, embedding []float32, k int, filter models.Filter) ([]models.QueryResult, error)
	GetDocument(ctx context.Context, docID string) (*models.Document, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
	DeleteDocument(ctx context.Context, docID string) error
	Stats(ctx context.Context) (*StoreStats, error)
	Close() error
}

// StoreStats summarizes store contents.
type StoreStats struct {
	Backend    string `json:"backend"`
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	Dimensions int    `json:"dimensions"`
}

// rankBySimilarity is the reference ranking shared by the brute-force
// backends: filter, score by cosine similarity, sort descending with
// deterministic tie order, truncate to k.
func rankBySimilarity(query []float32, chunks []models.EmbeddedChunk, k int, filter models.Filter) []models.QueryResult {
	results := make([]models.QueryResult, 0, k)
	if k <= 0 {
		return results
	}
	for _, c := range chunks {
		if !filter.Matches(c.Metadata) {
			continue
		}
		results = append(results, models.QueryResult{
			Chunk:      c.Chunk,
			Similarity: CosineSimilarity(query, c.Embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Chunk.DocID != b.Chunk.DocID {
			return a.Chunk.DocID < b.Chunk.DocID
		}
		return a.Chunk.ChunkIndex < b.Chunk.ChunkIndex
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}
