// Package extract reads source documents into pages of raw text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/clearhaven/passage/internal/models"
	"github.com/clearhaven/passage/internal/passerr"
)

// Reader turns document files into ordered pages of raw text. Page numbers
// are 1-based and follow the source's own structure: PDF pages, spreadsheet
// sheets, presentation slides. Single-body formats yield one page.
type Reader struct {
	logger *zap.Logger
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithLogger sets the logger for page-level extraction warnings.
func WithLogger(logger *zap.Logger) ReaderOption {
	return func(r *Reader) {
		r.logger = logger
	}
}

// NewReader returns a Reader for all supported formats.
func NewReader(opts ...ReaderOption) *Reader {
	r := &Reader{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadFile reads the file at path and returns its pages.
func (r *Reader) ReadFile(path string) ([]models.Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return r.ReadBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ReadBytes extracts pages from content based on the given extension.
// ext includes the leading dot (e.g. ".pdf"). Unsupported extensions are a
// validation error; the caller decides whether to skip or fail.
func (r *Reader) ReadBytes(content []byte, ext string) ([]models.Page, error) {
	switch ext {
	case ".pdf":
		return r.readPDF(content)
	case ".txt", ".md", ".rst":
		return readPlain(content)
	case ".docx":
		return readDOCX(content)
	case ".xlsx":
		return readXLSX(content)
	case ".pptx":
		return readPPTX(content)
	case ".odp", ".ods", ".odt":
		return readOpenDocument(content, ext)
	default:
		return nil, fmt.Errorf("unsupported extension %q: %w", ext, passerr.ErrValidation)
	}
}

// Supported reports whether the extension (with leading dot) has a reader.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".txt", ".md", ".rst", ".docx", ".xlsx", ".pptx", ".odp", ".ods", ".odt":
		return true
	}
	return false
}

func singlePage(text string) []models.Page {
	return []models.Page{{PageNumber: 1, RawText: text}}
}
