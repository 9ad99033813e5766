// Package models defines core data structures for pages, chunks, and retrieval results.
package models

// Page is the raw text of one source document page, as produced by a reader.
// Pages are immutable and owned by the ingestion run that produced them.
type Page struct {
	PageNumber int    `json:"page_number"`
	RawText    string `json:"raw_text"`
}

// Sentence is a single sentence with the page it came from.
// Order relative to sibling sentences is significant and must be preserved.
type Sentence struct {
	Text       string `json:"text"`
	PageNumber int    `json:"page_number"`
}

// Chunk is a contiguous span of sentences treated as one retrieval unit.
// ChunkIndex values for a document are contiguous starting at 0; a chunk is
// immutable once embedded and is replaced only by re-ingesting its document.
type Chunk struct {
	DocID       string                 `json:"doc_id" db:"doc_id"`
	ChunkIndex  int                    `json:"chunk_index" db:"chunk_index"`
	Content     string                 `json:"content" db:"content"`
	TokenCount  int                    `json:"token_count" db:"token_count"`
	PageNumbers []int                  `json:"page_numbers" db:"page_numbers"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
}

// EmbeddedChunk is a Chunk with its embedding vector attached.
// The vector is never mutated after write; re-embedding overwrites the
// record keyed by (DocID, ChunkIndex).
type EmbeddedChunk struct {
	Chunk
	Embedding []float32 `json:"-" db:"-"`
}
