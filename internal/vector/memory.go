package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/clearhaven/passage/internal/models"
	"github.com/clearhaven/passage/internal/passerr"
)

// MemoryStore is an in-memory store using brute-force cosine ranking.
// It is the reference backend: tests and the other backends are held to
// its query semantics. Contents do not survive process restart.
type MemoryStore struct {
	mu     sync.RWMutex
	dims   int
	chunks []models.EmbeddedChunk
	docs   map[string]models.Document
}

// NewMemoryStore creates an empty in-memory store. The vector dimension is
// pinned by the first inserted chunk.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]models.Document)}
}

// Insert appends chunks without touching the document registry.
func (s *MemoryStore) Insert(ctx context.Context, chunks []models.EmbeddedChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(chunks)
}

func (s *MemoryStore) insertLocked(chunks []models.EmbeddedChunk) error {
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s/%d has no embedding", c.DocID, c.ChunkIndex)
		}
		if s.dims == 0 {
			s.dims = len(c.Embedding)
		}
		if len(c.Embedding) != s.dims {
			return fmt.Errorf("chunk %s/%d dimension mismatch: got %d, expected %d", c.DocID, c.ChunkIndex, len(c.Embedding), s.dims)
		}
		vec := make([]float32, len(c.Embedding))
		copy(vec, c.Embedding)
		c.Embedding = vec
		s.chunks = append(s.chunks, c)
	}
	return nil
}

// Replace swaps the document's chunks and registry entry in one generation.
func (s *MemoryStore) Replace(ctx context.Context, doc models.Document, chunks []models.EmbeddedChunk) error {
	for _, c := range chunks {
		if c.DocID != doc.ID {
			return fmt.Errorf("chunk %d belongs to document %q, want %q", c.ChunkIndex, c.DocID, doc.ID)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(doc.ID)
	if err := s.insertLocked(chunks); err != nil {
		return err
	}
	doc.ChunkCount = len(chunks)
	s.docs[doc.ID] = doc
	return nil
}

// Query returns the top-k chunks by cosine similarity among filter matches.
func (s *MemoryStore) Query(ctx context.Context, embedding []float32, k int, filter models.Filter) ([]models.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dims != 0 && len(embedding) != s.dims {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(embedding), s.dims)
	}
	return rankBySimilarity(embedding, s.chunks, k, filter), nil
}

// GetDocument returns the registry entry for docID.
func (s *MemoryStore) GetDocument(ctx context.Context, docID string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docID]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", docID, passerr.ErrNotFound)
	}
	return &doc, nil
}

// ListDocuments returns all registry entries ordered by ID.
func (s *MemoryStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]models.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// DeleteDocument removes the document's chunks and registry entry.
// Deleting an unknown document is a no-op.
func (s *MemoryStore) DeleteDocument(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(docID)
	delete(s.docs, docID)
	return nil
}

func (s *MemoryStore) removeLocked(docID string) {
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.DocID != docID {
			kept = append(kept, c)
		}
	}
	s.chunks = kept
}

// Stats reports document and chunk counts.
func (s *MemoryStore) Stats(ctx context.Context) (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &StoreStats{
		Backend:    "memory",
		Documents:  len(s.docs),
		Chunks:     len(s.chunks),
		Dimensions: s.dims,
	}, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
