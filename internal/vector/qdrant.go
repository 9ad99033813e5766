package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clearhaven/passage/internal/models"
	"github.com/clearhaven/passage/internal/passerr"
)

// QdrantStore talks to a Qdrant server over its REST API. The collection is
// created on construction if missing (cosine distance). Point ids are
// UUIDv5 digests of doc id and chunk index, so re-ingesting a document
// overwrites its points deterministically. Document registry fields ride on
// every point's payload; Replace is delete-then-upsert with wait=true, not
// a single transaction like the SQL backends.
type QdrantStore struct {
	baseURL    string
	apiKey     string
	collection string
	dims       int
	client     *http.Client
}

// NewQdrantStore connects to the Qdrant server in cfg and ensures the
// collection exists.
func NewQdrantStore(cfg Config) (*QdrantStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant store url is empty: %w", passerr.ErrConfiguration)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("qdrant store needs a positive dimension, got %d: %w", cfg.Dimensions, passerr.ErrConfiguration)
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "passage"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	s := &QdrantStore{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		dims:       cfg.Dimensions,
		client:     &http.Client{Timeout: timeout},
	}
	if err := s.ensureCollection(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	body := map[string]interface{}{
		"vectors": map[string]interface{}{"size": s.dims, "distance": "Cosine"},
	}
	return s.do(ctx, http.MethodPut, "/collections/"+s.collection, body, nil)
}

func (s *QdrantStore) collectionExists(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/collections/"+s.collection, nil)
	if err != nil {
		return false, err
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("qdrant GET collection: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("qdrant GET collection: status %s: %w", resp.Status, passerr.ErrProvider)
	}
	return true, nil
}

// Insert appends chunks without registry fields on their payload.
func (s *QdrantStore) Insert(ctx context.Context, chunks []models.EmbeddedChunk) error {
	return s.upsert(ctx, nil, chunks)
}

// Replace deletes the document's prior points and upserts the new
// generation. Both steps wait for commit on the server.
func (s *QdrantStore) Replace(ctx context.Context, doc models.Document, chunks []models.EmbeddedChunk) error {
	if err := s.deletePoints(ctx, doc.ID); err != nil {
		return err
	}
	doc.ChunkCount = len(chunks)
	return s.upsert(ctx, &doc, chunks)
}

func (s *QdrantStore) upsert(ctx context.Context, doc *models.Document, chunks []models.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]map[string]interface{}, len(chunks))
	for i, c := range chunks {
		if len(c.Embedding) != s.dims {
			return fmt.Errorf("chunk %s/%d dimension mismatch: got %d, expected %d", c.DocID, c.ChunkIndex, len(c.Embedding), s.dims)
		}
		points[i] = map[string]interface{}{
			"id":      pointID(c.DocID, c.ChunkIndex),
			"vector":  c.Embedding,
			"payload": chunkPayload(doc, c),
		}
	}
	body := map[string]interface{}{"points": points}
	return s.do(ctx, http.MethodPut, "/collections/"+s.collection+"/points?wait=true", body, nil)
}

// pointID derives a stable UUIDv5 for a chunk so upserts overwrite.
func pointID(docID string, chunkIndex int) string {
	name := "passage://" + docID + "/" + strconv.Itoa(chunkIndex)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func chunkPayload(doc *models.Document, c models.EmbeddedChunk) map[string]interface{} {
	payload := map[string]interface{}{
		"doc_id":       c.DocID,
		"chunk_index":  c.ChunkIndex,
		"content":      c.Content,
		"token_count":  c.TokenCount,
		"page_numbers": c.PageNumbers,
		"metadata":     c.Metadata,
	}
	if doc != nil {
		payload["doc_path"] = doc.Path
		payload["doc_title"] = doc.Title
		payload["doc_content_hash"] = doc.ContentHash
		payload["doc_chunk_count"] = doc.ChunkCount
		payload["doc_ingested_at"] = doc.IngestedAt.Format(time.RFC3339Nano)
	}
	return payload
}

func payloadChunk(p map[string]interface{}) models.Chunk {
	var c models.Chunk
	if v, ok := p["doc_id"].(string); ok {
		c.DocID = v
	}
	if v, ok := p["chunk_index"].(float64); ok {
		c.ChunkIndex = int(v)
	}
	if v, ok := p["content"].(string); ok {
		c.Content = v
	}
	if v, ok := p["token_count"].(float64); ok {
		c.TokenCount = int(v)
	}
	if pages, ok := p["page_numbers"].([]interface{}); ok {
		for _, n := range pages {
			if f, ok := n.(float64); ok {
				c.PageNumbers = append(c.PageNumbers, int(f))
			}
		}
	}
	if meta, ok := p["metadata"].(map[string]interface{}); ok {
		c.Metadata = meta
	}
	return c
}

// Query searches the collection. Filter conditions on string, bool, and
// whole-number values push down to the server; anything else over-fetches
// and re-checks the filter on the payload.
func (s *QdrantStore) Query(ctx context.Context, embedding []float32, k int, filter models.Filter) ([]models.QueryResult, error) {
	results := make([]models.QueryResult, 0, k)
	if k <= 0 {
		return results, nil
	}
	conds, complete := qdrantConditions(filter)
	limit := k
	if !complete {
		limit = k * 4
	}
	req := map[string]interface{}{
		"vector":       embedding,
		"limit":        limit,
		"with_payload": true,
	}
	if len(conds) > 0 {
		req["filter"] = map[string]interface{}{"must": conds}
	}
	var resp struct {
		Result []struct {
			Score   float64                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, "/collections/"+s.collection+"/points/search", req, &resp); err != nil {
		return nil, err
	}
	for _, hit := range resp.Result {
		chunk := payloadChunk(hit.Payload)
		if !complete && !filter.Matches(chunk.Metadata) {
			continue
		}
		results = append(results, models.QueryResult{Chunk: chunk, Similarity: hit.Score})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// qdrantConditions converts the filter to match conditions. complete is
// false when some value type has no server-side representation.
func qdrantConditions(filter models.Filter) ([]map[string]interface{}, bool) {
	complete := true
	conds := make([]map[string]interface{}, 0, len(filter))
	for key, value := range filter {
		var match interface{}
		switch v := value.(type) {
		case string, bool:
			match = v
		case int:
			match = v
		case int64:
			match = v
		case float64:
			if v == float64(int64(v)) {
				match = int64(v)
			} else {
				complete = false
				continue
			}
		default:
			complete = false
			continue
		}
		conds = append(conds, map[string]interface{}{
			"key":   "metadata." + key,
			"match": map[string]interface{}{"value": match},
		})
	}
	return conds, complete
}

func docFilter(docID string) map[string]interface{} {
	return map[string]interface{}{
		"must": []map[string]interface{}{
			{"key": "doc_id", "match": map[string]interface{}{"value": docID}},
		},
	}
}

// GetDocument reconstructs the registry entry from any of the document's
// points. Points written by bare Insert carry no registry fields, so the
// entry may have an empty content hash.
func (s *QdrantStore) GetDocument(ctx context.Context, docID string) (*models.Document, error) {
	req := map[string]interface{}{
		"filter":       docFilter(docID),
		"limit":        1,
		"with_payload": true,
	}
	var resp struct {
		Result struct {
			Points []struct {
				Payload map[string]interface{} `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, "/collections/"+s.collection+"/points/scroll", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result.Points) == 0 {
		return nil, fmt.Errorf("document %s: %w", docID, passerr.ErrNotFound)
	}
	doc := payloadDocument(resp.Result.Points[0].Payload)
	return &doc, nil
}

func payloadDocument(p map[string]interface{}) models.Document {
	var doc models.Document
	if v, ok := p["doc_id"].(string); ok {
		doc.ID = v
	}
	if v, ok := p["doc_path"].(string); ok {
		doc.Path = v
	}
	if v, ok := p["doc_title"].(string); ok {
		doc.Title = v
	}
	if v, ok := p["doc_content_hash"].(string); ok {
		doc.ContentHash = v
	}
	if v, ok := p["doc_chunk_count"].(float64); ok {
		doc.ChunkCount = int(v)
	}
	if v, ok := p["doc_ingested_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			doc.IngestedAt = t
		}
	}
	return doc
}

// ListDocuments scrolls the collection and deduplicates registry entries.
func (s *QdrantStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	seen := make(map[string]models.Document)
	var offset interface{}
	for {
		req := map[string]interface{}{
			"limit":        256,
			"with_payload": true,
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []struct {
					Payload map[string]interface{} `json:"payload"`
				} `json:"points"`
				NextPageOffset interface{} `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := s.do(ctx, http.MethodPost, "/collections/"+s.collection+"/points/scroll", req, &resp); err != nil {
			return nil, err
		}
		for _, point := range resp.Result.Points {
			doc := payloadDocument(point.Payload)
			if doc.ID != "" {
				seen[doc.ID] = doc
			}
		}
		if resp.Result.NextPageOffset == nil {
			break
		}
		offset = resp.Result.NextPageOffset
	}
	docs := make([]models.Document, 0, len(seen))
	for _, doc := range seen {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// DeleteDocument removes all of the document's points.
func (s *QdrantStore) DeleteDocument(ctx context.Context, docID string) error {
	return s.deletePoints(ctx, docID)
}

func (s *QdrantStore) deletePoints(ctx context.Context, docID string) error {
	body := map[string]interface{}{"filter": docFilter(docID)}
	return s.do(ctx, http.MethodPost, "/collections/"+s.collection+"/points/delete?wait=true", body, nil)
}

// Stats counts points exactly and derives the document count from the
// deduplicated registry scroll.
func (s *QdrantStore) Stats(ctx context.Context) (*StoreStats, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, "/collections/"+s.collection+"/points/count", map[string]interface{}{"exact": true}, &resp); err != nil {
		return nil, err
	}
	docs, err := s.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	return &StoreStats{
		Backend:    "qdrant",
		Documents:  len(docs),
		Chunks:     resp.Result.Count,
		Dimensions: s.dims,
	}, nil
}

// Close is a no-op; the HTTP client holds no connection state worth closing.
func (s *QdrantStore) Close() error {
	return nil
}

func (s *QdrantStore) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s: status %s: %w", method, path, resp.Status, passerr.ErrProvider)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode qdrant response: %w", err)
		}
	}
	return nil
}
