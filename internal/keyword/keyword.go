// Package keyword maintains an optional Bleve index over chunk text for
// keyword and hybrid retrieval. The vector path never consults it; when the
// index is disabled the rest of the pipeline pays nothing.
package keyword

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/clearhaven/passage/internal/models"
)

// Index is a Bleve index keyed by chunk. Entries carry enough stored fields
// to rebuild a models.Chunk, so keyword hits need no second lookup.
type Index struct {
	index bleve.Index
}

// chunkEntry is the indexed form of a chunk. Bleve maps fields by json tag.
type chunkEntry struct {
	DocID       string                 `json:"doc_id"`
	ChunkIndex  int                    `json:"chunk_index"`
	Content     string                 `json:"content"`
	Title       string                 `json:"title"`
	TokenCount  int                    `json:"token_count"`
	PageNumbers []int                  `json:"page_numbers"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// Hit is a single keyword search result. Score is Bleve's relevance score,
// positive and unbounded; hybrid fusion normalizes it.
type Hit struct {
	Chunk models.Chunk
	Score float64
}

// NewIndex creates or opens a Bleve index at path. An existing index is
// opened as is; remove the directory to force a mapping change through.
func NewIndex(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		idx, err := bleve.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open keyword index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return &Index{index: idx}, nil
}

// buildMapping indexes content and title with the standard analyzer
// (lowercase + tokenize, no stemming, so "glucose" matches "Glucose" but
// "run" does not match "running") and keeps doc_id as an untokenized keyword
// for delete-by-document. Metadata sub-fields index dynamically.
func buildMapping() *mapping.IndexMappingImpl {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name

	chunk := bleve.NewDocumentMapping()
	chunk.AddFieldMappingsAt("content", text)
	chunk.AddFieldMappingsAt("title", text)
	chunk.AddFieldMappingsAt("doc_id", bleve.NewKeywordFieldMapping())
	chunk.AddFieldMappingsAt("chunk_index", bleve.NewNumericFieldMapping())
	chunk.AddFieldMappingsAt("token_count", bleve.NewNumericFieldMapping())
	chunk.AddFieldMappingsAt("page_numbers", bleve.NewNumericFieldMapping())

	im := bleve.NewIndexMapping()
	im.DefaultMapping = chunk
	return im
}

// IndexDocument replaces all entries for doc with the given chunks.
func (k *Index) IndexDocument(ctx context.Context, doc models.Document, chunks []models.Chunk) error {
	if err := k.DeleteDocument(ctx, doc.ID); err != nil {
		return err
	}

	batch := k.index.NewBatch()
	for _, c := range chunks {
		entry := chunkEntry{
			DocID:       c.DocID,
			ChunkIndex:  c.ChunkIndex,
			Content:     c.Content,
			Title:       doc.Title,
			TokenCount:  c.TokenCount,
			PageNumbers: c.PageNumbers,
			Metadata:    c.Metadata,
		}
		if err := batch.Index(entryID(c.DocID, c.ChunkIndex), entry); err != nil {
			return fmt.Errorf("index chunk %d of %s: %w", c.ChunkIndex, c.DocID, err)
		}
	}
	if err := k.index.Batch(batch); err != nil {
		return fmt.Errorf("index document %s: %w", doc.ID, err)
	}
	return nil
}

// DeleteDocument removes every entry for docID. Deleting a document that was
// never indexed is a no-op.
func (k *Index) DeleteDocument(ctx context.Context, docID string) error {
	q := bleve.NewTermQuery(docID)
	q.SetField("doc_id")

	for {
		req := bleve.NewSearchRequest(q)
		req.Size = 500
		res, err := k.index.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("find entries for %s: %w", docID, err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := k.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := k.index.Batch(batch); err != nil {
			return fmt.Errorf("delete entries for %s: %w", docID, err)
		}
	}
}

// Search runs a match query over all indexed fields and returns up to limit
// hits, best first.
func (k *Index) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		return []Hit{}, nil
	}

	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	req.Fields = []string{"*"}
	res, err := k.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{Chunk: chunkFromFields(h.Fields), Score: h.Score})
	}
	return hits, nil
}

// EntryCount returns the number of indexed chunks.
func (k *Index) EntryCount() (uint64, error) {
	return k.index.DocCount()
}

// Close closes the underlying index.
func (k *Index) Close() error {
	return k.index.Close()
}

func entryID(docID string, chunkIndex int) string {
	return docID + "#" + strconv.Itoa(chunkIndex)
}

// chunkFromFields rebuilds a chunk from Bleve's stored fields.
func chunkFromFields(fields map[string]interface{}) models.Chunk {
	return models.Chunk{
		DocID:       fieldString(fields, "doc_id"),
		ChunkIndex:  fieldInt(fields, "chunk_index"),
		Content:     fieldString(fields, "content"),
		TokenCount:  fieldInt(fields, "token_count"),
		PageNumbers: fieldInts(fields, "page_numbers"),
		Metadata:    metadataFromFields(fields),
	}
}

func fieldString(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}

func fieldInt(fields map[string]interface{}, name string) int {
	f, _ := fields[name].(float64)
	return int(f)
}

// fieldInts handles Bleve flattening single-element arrays to a bare value.
func fieldInts(fields map[string]interface{}, name string) []int {
	switch v := fields[name].(type) {
	case float64:
		return []int{int(v)}
	case []interface{}:
		out := make([]int, 0, len(v))
		for _, e := range v {
			if f, ok := e.(float64); ok {
				out = append(out, int(f))
			}
		}
		return out
	}
	return nil
}

func metadataFromFields(fields map[string]interface{}) map[string]interface{} {
	var meta map[string]interface{}
	for name, value := range fields {
		key, ok := strings.CutPrefix(name, "metadata.")
		if !ok {
			continue
		}
		if meta == nil {
			meta = make(map[string]interface{})
		}
		meta[key] = value
	}
	return meta
}
