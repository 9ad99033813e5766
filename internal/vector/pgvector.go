package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/clearhaven/passage/internal/models"
	"github.com/clearhaven/passage/internal/passerr"
)

// PGVectorStore persists chunks in Postgres with the pgvector extension.
// Ranking happens in the database: cosine distance via the <=> operator
// with an ivfflat index, metadata filters via jsonb containment. The
// pgvector extension must already be installed in the target database.
type PGVectorStore struct {
	db   *sql.DB
	dims int
}

// NewPGVectorStore connects to Postgres and ensures the schema exists.
func NewPGVectorStore(dsn string, dimensions int) (*PGVectorStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pgvector store dsn is empty: %w", passerr.ErrConfiguration)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("pgvector store needs a positive dimension, got %d: %w", dimensions, passerr.ErrConfiguration)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &PGVectorStore{db: db, dims: dimensions}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *PGVectorStore) ensureSchema() error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	path TEXT,
	title TEXT,
	content_hash TEXT NOT NULL,
	chunk_count INTEGER NOT NULL,
	ingested_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	doc_id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	content TEXT NOT NULL,
	token_count INTEGER NOT NULL,
	page_numbers JSONB,
	metadata JSONB,
	embedding vector(%d) NOT NULL,
	PRIMARY KEY (doc_id, chunk_index)
);
CREATE INDEX IF NOT EXISTS chunks_metadata_idx ON chunks USING gin (metadata);
CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`, s.dims)
	_, err := s.db.Exec(ddl)
	return err
}

// Insert appends chunks without touching the document registry.
func (s *PGVectorStore) Insert(ctx context.Context, chunks []models.EmbeddedChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	return tx.Commit()
}

// Replace swaps the document's chunks and registry entry in one transaction.
func (s *PGVectorStore) Replace(ctx context.Context, doc models.Document, chunks []models.EmbeddedChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("delete prior chunks: %w", err)
	}
	doc.ChunkCount = len(chunks)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (id, path, title, content_hash, chunk_count, ingested_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   path = EXCLUDED.path,
		   title = EXCLUDED.title,
		   content_hash = EXCLUDED.content_hash,
		   chunk_count = EXCLUDED.chunk_count,
		   ingested_at = EXCLUDED.ingested_at`,
		doc.ID, doc.Path, doc.Title, doc.ContentHash, doc.ChunkCount, doc.IngestedAt,
	); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	if err := s.insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PGVectorStore) insertChunks(ctx context.Context, tx *sql.Tx, chunks []models.EmbeddedChunk) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (doc_id, chunk_index, content, token_count, page_numbers, metadata, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if len(c.Embedding) != s.dims {
			return fmt.Errorf("chunk %s/%d dimension mismatch: got %d, expected %d", c.DocID, c.ChunkIndex, len(c.Embedding), s.dims)
		}
		pages, err := json.Marshal(c.PageNumbers)
		if err != nil {
			return fmt.Errorf("marshal page numbers: %w", err)
		}
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			c.DocID, c.ChunkIndex, c.Content, c.TokenCount, pages, meta, pgvector.NewVector(c.Embedding),
		); err != nil {
			return fmt.Errorf("insert chunk %s/%d: %w", c.DocID, c.ChunkIndex, err)
		}
	}
	return nil
}

// Query ranks chunks in the database by cosine distance. Metadata filters
// push down as jsonb containment, matching the reference semantics.
func (s *PGVectorStore) Query(ctx context.Context, embedding []float32, k int, filter models.Filter) ([]models.QueryResult, error) {
	results := make([]models.QueryResult, 0, k)
	if k <= 0 {
		return results, nil
	}
	if len(embedding) != s.dims {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(embedding), s.dims)
	}

	query := `
		SELECT doc_id, chunk_index, content, token_count, page_numbers, metadata,
		       1 - (embedding <=> $1) AS similarity
		FROM chunks`
	args := []interface{}{pgvector.NewVector(embedding)}
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("marshal filter: %w", err)
		}
		query += ` WHERE metadata @> $2::jsonb`
		args = append(args, filterJSON)
	}
	query += fmt.Sprintf(` ORDER BY embedding <=> $1, doc_id, chunk_index LIMIT %d`, k)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.QueryResult
		var pagesJSON, metaJSON []byte
		if err := rows.Scan(&r.Chunk.DocID, &r.Chunk.ChunkIndex, &r.Chunk.Content, &r.Chunk.TokenCount, &pagesJSON, &metaJSON, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(pagesJSON) > 0 {
			if err := json.Unmarshal(pagesJSON, &r.Chunk.PageNumbers); err != nil {
				return nil, fmt.Errorf("unmarshal page numbers: %w", err)
			}
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &r.Chunk.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetDocument returns the registry entry for docID.
func (s *PGVectorStore) GetDocument(ctx context.Context, docID string) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, path, title, content_hash, chunk_count, ingested_at FROM documents WHERE id = $1`, docID,
	).Scan(&doc.ID, &doc.Path, &doc.Title, &doc.ContentHash, &doc.ChunkCount, &doc.IngestedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", docID, passerr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns registry entries, most recently ingested first.
func (s *PGVectorStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, title, content_hash, chunk_count, ingested_at FROM documents ORDER BY ingested_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Path, &doc.Title, &doc.ContentHash, &doc.ChunkCount, &doc.IngestedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes the document's chunks and registry entry.
func (s *PGVectorStore) DeleteDocument(ctx context.Context, docID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = $1`, docID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, docID); err != nil {
		return err
	}
	return tx.Commit()
}

// Stats reports document and chunk counts.
func (s *PGVectorStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{Backend: "pgvector", Dimensions: s.dims}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.Documents); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&stats.Chunks); err != nil {
		return nil, err
	}
	return stats, nil
}

// Close closes the connection pool.
func (s *PGVectorStore) Close() error {
	return s.db.Close()
}
