// Package ingest orchestrates the pipeline from source file to stored,
// embedded chunks: read pages, segment, chunk, embed, swap into the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/clearhaven/passage/internal/chunker"
	"github.com/clearhaven/passage/internal/embedding"
	"github.com/clearhaven/passage/internal/extract"
	"github.com/clearhaven/passage/internal/fileid"
	"github.com/clearhaven/passage/internal/keyword"
	"github.com/clearhaven/passage/internal/models"
	"github.com/clearhaven/passage/internal/passerr"
	"github.com/clearhaven/passage/internal/segment"
	"github.com/clearhaven/passage/internal/vector"
)

// Result describes one completed ingestion.
type Result struct {
	DocID   string
	Path    string
	Title   string
	Pages   int
	Chunks  int
	Skipped bool
}

// Ingestor runs the ingestion pipeline. Every batch of a document embeds
// before anything is written, and the write is a single Replace, so an
// aborted run leaves either the complete prior generation or the complete
// new one.
type Ingestor struct {
	reader  *extract.Reader
	builder *chunker.Builder
	batcher *embedding.Batcher
	store   vector.Store
	keyword *keyword.Index
	logger  *zap.Logger
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithKeywordIndex mirrors every replace and delete into the keyword index.
func WithKeywordIndex(idx *keyword.Index) IngestorOption {
	return func(ing *Ingestor) {
		ing.keyword = idx
	}
}

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) IngestorOption {
	return func(ing *Ingestor) {
		ing.logger = logger
	}
}

// NewIngestor creates an Ingestor from the pipeline stages.
func NewIngestor(reader *extract.Reader, builder *chunker.Builder, batcher *embedding.Batcher, store vector.Store, opts ...IngestorOption) (*Ingestor, error) {
	if reader == nil {
		return nil, fmt.Errorf("%w: reader is required", passerr.ErrConfiguration)
	}
	if builder == nil {
		return nil, fmt.Errorf("%w: chunk builder is required", passerr.ErrConfiguration)
	}
	if batcher == nil {
		return nil, fmt.Errorf("%w: embedding batcher is required", passerr.ErrConfiguration)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: vector store is required", passerr.ErrConfiguration)
	}
	ing := &Ingestor{
		reader:  reader,
		builder: builder,
		batcher: batcher,
		store:   store,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing, nil
}

// IngestFile ingests one file. The document ID derives from the absolute
// path, so re-ingesting a file replaces its chunks. An unchanged file (same
// content hash in the registry) is skipped unless force is set. metadata is
// attached to every chunk and is filterable at query time.
func (ing *Ingestor) IngestFile(ctx context.Context, path string, metadata map[string]interface{}, force bool) (*Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: not a regular file: %s", passerr.ErrValidation, absPath)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	docID := fileid.FileDocID(absPath)
	hash := fileid.ContentHash(content)
	if !force {
		existing, err := ing.store.GetDocument(ctx, docID)
		switch {
		case err == nil && existing.ContentHash == hash:
			ing.logger.Debug("skipping unchanged file",
				zap.String("path", absPath),
				zap.String("doc_id", docID))
			return &Result{DocID: docID, Path: absPath, Title: existing.Title, Chunks: existing.ChunkCount, Skipped: true}, nil
		case err != nil && !errors.Is(err, passerr.ErrNotFound):
			return nil, fmt.Errorf("check registry for %s: %w", docID, err)
		}
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	pages, err := ing.reader.ReadBytes(content, ext)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", absPath, err)
	}

	doc := models.Document{
		ID:          docID,
		Path:        absPath,
		Title:       filepath.Base(absPath),
		ContentHash: hash,
		IngestedAt:  time.Now().UTC(),
	}
	return ing.IngestPages(ctx, doc, pages, metadata)
}

// IngestPages runs the pipeline over already-extracted pages. Pages that
// normalize to nothing are logged and skipped; the run continues. A document
// with no usable text at all still registers, with zero chunks, so listings
// and skip detection see it.
func (ing *Ingestor) IngestPages(ctx context.Context, doc models.Document, pages []models.Page, metadata map[string]interface{}) (*Result, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: document ID is empty", passerr.ErrValidation)
	}

	var sentences []models.Sentence
	for _, page := range pages {
		normalized := segment.Normalize(page.RawText)
		if normalized == "" {
			ing.logger.Debug("page has no usable text",
				zap.String("doc_id", doc.ID),
				zap.Int("page", page.PageNumber))
			continue
		}
		sentences = append(sentences, segment.Split(normalized, page.PageNumber)...)
	}

	chunks := ing.builder.Build(doc.ID, sentences, metadata)

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}
	vectors, err := ing.batcher.EmbedAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks for %s: %w", doc.ID, err)
	}

	embedded := make([]models.EmbeddedChunk, len(chunks))
	for i := range chunks {
		embedded[i] = models.EmbeddedChunk{Chunk: chunks[i], Embedding: vectors[i]}
	}

	// Abort before the swap, never during. A cancelled run leaves the prior
	// generation untouched.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ing.store.Replace(ctx, doc, embedded); err != nil {
		return nil, fmt.Errorf("replace document %s: %w", doc.ID, err)
	}

	if ing.keyword != nil {
		kwDoc := doc
		kwDoc.Title = keywordTitle(doc.Title)
		if err := ing.keyword.IndexDocument(ctx, kwDoc, chunks); err != nil {
			return nil, fmt.Errorf("index keywords for %s: %w", doc.ID, err)
		}
	}

	ing.logger.Info("document ingested",
		zap.String("doc_id", doc.ID),
		zap.String("title", doc.Title),
		zap.Int("pages", len(pages)),
		zap.Int("chunks", len(chunks)))
	return &Result{
		DocID:  doc.ID,
		Path:   doc.Path,
		Title:  doc.Title,
		Pages:  len(pages),
		Chunks: len(chunks),
	}, nil
}

// IngestDirectory walks dir and ingests every regular file with a supported
// extension. Unsupported files are skipped quietly; the first failed
// ingestion stops the walk. Returns the results gathered so far.
func (ing *Ingestor) IngestDirectory(ctx context.Context, dir string, metadata map[string]interface{}, force bool) ([]Result, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", passerr.ErrValidation, absDir)
	}

	var results []Result
	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !extract.Supported(filepath.Ext(path)) {
			ing.logger.Debug("skipping unsupported file", zap.String("path", path))
			return nil
		}
		// Stat resolves symlinks; only regular files are ingested.
		finfo, err := os.Stat(path)
		if err != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		res, err := ing.IngestFile(ctx, path, metadata, force)
		if err != nil {
			return err
		}
		results = append(results, *res)
		return nil
	})
	return results, err
}

// DeleteDocument removes a document from the store and, when enabled, the
// keyword index. Deleting an unknown document is a no-op.
func (ing *Ingestor) DeleteDocument(ctx context.Context, docID string) error {
	if err := ing.store.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("delete document %s: %w", docID, err)
	}
	if ing.keyword != nil {
		if err := ing.keyword.DeleteDocument(ctx, docID); err != nil {
			return fmt.Errorf("delete keywords for %s: %w", docID, err)
		}
	}
	ing.logger.Info("document deleted", zap.String("doc_id", docID))
	return nil
}

// keywordTitle makes underscore-separated filenames searchable as words; the
// standard analyzer does not split on underscores.
func keywordTitle(title string) string {
	return strings.ReplaceAll(title, "_", " ")
}
