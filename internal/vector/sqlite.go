package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/clearhaven/passage/internal/models"
	"github.com/clearhaven/passage/internal/passerr"
)

// SQLiteStore persists chunks and the document registry in a single SQLite
// file. Embeddings are stored as little-endian float32 blobs; queries load
// candidates and rank in Go, so it suits small-to-medium corpora where a
// single file beats running a database server.
type SQLiteStore struct {
	db   *sql.DB
	dims int
}

// NewSQLiteStore opens or creates the database at path and initializes the
// schema. Parent directories are created if they do not exist.
func NewSQLiteStore(path string, dimensions int) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store path is empty: %w", passerr.ErrConfiguration)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLiteStore{db: db, dims: dimensions}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		path TEXT,
		title TEXT,
		content_hash TEXT NOT NULL,
		chunk_count INTEGER NOT NULL,
		ingested_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		doc_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		token_count INTEGER NOT NULL,
		page_numbers TEXT,
		metadata TEXT,
		embedding BLOB NOT NULL,
		PRIMARY KEY (doc_id, chunk_index)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Insert appends chunks without touching the document registry.
func (s *SQLiteStore) Insert(ctx context.Context, chunks []models.EmbeddedChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	return tx.Commit()
}

// Replace swaps the document's chunks and registry entry in one transaction.
func (s *SQLiteStore) Replace(ctx context.Context, doc models.Document, chunks []models.EmbeddedChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("delete prior chunks: %w", err)
	}
	doc.ChunkCount = len(chunks)
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (id, path, title, content_hash, chunk_count, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Path, doc.Title, doc.ContentHash, doc.ChunkCount, doc.IngestedAt,
	); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	return tx.Commit()
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []models.EmbeddedChunk) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (doc_id, chunk_index, content, token_count, page_numbers, metadata, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s/%d has no embedding", c.DocID, c.ChunkIndex)
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
			c.DocID, c.ChunkIndex, c.Content, c.TokenCount, string(pages), string(meta), encodeEmbedding(c.Embedding),
		); err != nil {
			return fmt.Errorf("insert chunk %s/%d: %w", c.DocID, c.ChunkIndex, err)
		}
	}
	return nil
}

// Query loads all chunks and ranks them in Go with the reference ranking.
func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, k int, filter models.Filter) ([]models.QueryResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, chunk_index, content, token_count, page_numbers, metadata, embedding FROM chunks`,
	)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.EmbeddedChunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rankBySimilarity(embedding, chunks, k, filter), nil
}

func scanChunk(rows *sql.Rows) (models.EmbeddedChunk, error) {
	var c models.EmbeddedChunk
	var pagesJSON, metaJSON string
	var blob []byte
	if err := rows.Scan(&c.DocID, &c.ChunkIndex, &c.Content, &c.TokenCount, &pagesJSON, &metaJSON, &blob); err != nil {
		return c, fmt.Errorf("scan chunk: %w", err)
	}
	if pagesJSON != "" {
		if err := json.Unmarshal([]byte(pagesJSON), &c.PageNumbers); err != nil {
			return c, fmt.Errorf("unmarshal page numbers: %w", err)
		}
	}
	if metaJSON != "" && metaJSON != "null" {
		if err := json.Unmarshal([]byte(metaJSON), &c.Metadata); err != nil {
			return c, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	c.Embedding = decodeEmbedding(blob)
	return c, nil
}

// GetDocument returns the registry entry for docID.
func (s *SQLiteStore) GetDocument(ctx context.Context, docID string) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, path, title, content_hash, chunk_count, ingested_at FROM documents WHERE id = ?`, docID,
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
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]models.Document, error) {
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
func (s *SQLiteStore) DeleteDocument(ctx context.Context, docID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, docID); err != nil {
		return err
	}
	return tx.Commit()
}

// Stats reports document and chunk counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{Backend: "sqlite", Dimensions: s.dims}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.Documents); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&stats.Chunks); err != nil {
		return nil, err
	}
	return stats, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeEmbedding(vec []float32) []byte {
	out := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(v))
	}
	return out
}

func decodeEmbedding(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
