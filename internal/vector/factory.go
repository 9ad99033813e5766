package vector

import (
	"fmt"
	"time"

	"github.com/clearhaven/passage/internal/passerr"
)

// Config selects and parameterizes a store backend.
type Config struct {
	Backend    string
	Path       string        // sqlite database file
	DSN        string        // pgvector connection string
	URL        string        // qdrant server url
	APIKey     string        // qdrant api key, optional
	Collection string        // qdrant collection name
	Timeout    time.Duration // qdrant request timeout
	Dimensions int
}

// NewStore creates the store backend named by cfg.Backend.
// Supported backends: memory (default), sqlite, pgvector, qdrant.
func NewStore(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path, cfg.Dimensions)
	case "pgvector":
		return NewPGVectorStore(cfg.DSN, cfg.Dimensions)
	case "qdrant":
		return NewQdrantStore(cfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q (supported: memory, sqlite, pgvector, qdrant): %w", cfg.Backend, passerr.ErrConfiguration)
	}
}
