package config

import (
	"fmt"

	"github.com/clearhaven/passage/internal/passerr"
)

// Validate checks every bound the pipeline constructors will enforce, so a
// bad file fails at startup with a field name instead of deep in the wiring.
func (c *Config) Validate() error {
	if err := c.Chunking.validate(); err != nil {
		return err
	}
	if err := c.Embedding.validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Search.validate(); err != nil {
		return err
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("%w: watch.debounce must be positive", passerr.ErrConfiguration)
	}
	return nil
}

func (c *ChunkingConfig) validate() error {
	if c.SentencesPerChunk < 1 {
		return fmt.Errorf("%w: chunking.sentences_per_chunk must be at least 1", passerr.ErrConfiguration)
	}
	if c.SentenceOverlap < 0 {
		return fmt.Errorf("%w: chunking.sentence_overlap must not be negative", passerr.ErrConfiguration)
	}
	if c.SentenceOverlap >= c.SentencesPerChunk {
		return fmt.Errorf("%w: chunking.sentence_overlap must be less than sentences_per_chunk", passerr.ErrConfiguration)
	}
	if c.MinTokens < 0 {
		return fmt.Errorf("%w: chunking.min_tokens must not be negative", passerr.ErrConfiguration)
	}
	if c.MaxTokens <= c.MinTokens {
		return fmt.Errorf("%w: chunking.max_tokens must exceed min_tokens", passerr.ErrConfiguration)
	}
	return nil
}

func (e *EmbeddingConfig) validate() error {
	switch e.Provider {
	case "openai", "mock", "onnx":
	default:
		return fmt.Errorf("%w: embedding.provider must be one of openai, mock, onnx (got %q)", passerr.ErrConfiguration, e.Provider)
	}
	if e.Model == "" {
		return fmt.Errorf("%w: embedding.model is required", passerr.ErrConfiguration)
	}
	if e.Dimensions < 1 {
		return fmt.Errorf("%w: embedding.dimensions must be at least 1", passerr.ErrConfiguration)
	}
	if e.BatchSize < 1 {
		return fmt.Errorf("%w: embedding.batch_size must be at least 1", passerr.ErrConfiguration)
	}
	if e.MaxInFlight < 1 {
		return fmt.Errorf("%w: embedding.max_in_flight must be at least 1", passerr.ErrConfiguration)
	}
	if e.MaxRetries < 0 {
		return fmt.Errorf("%w: embedding.max_retries must not be negative", passerr.ErrConfiguration)
	}
	if e.Timeout <= 0 {
		return fmt.Errorf("%w: embedding.timeout must be positive", passerr.ErrConfiguration)
	}
	if e.CacheSize < 0 {
		return fmt.Errorf("%w: embedding.cache_size must not be negative", passerr.ErrConfiguration)
	}
	if e.Provider == "openai" {
		if e.BaseURL == "" {
			return fmt.Errorf("%w: embedding.base_url is required for the openai provider", passerr.ErrConfiguration)
		}
		if e.APIKeyEnv == "" {
			return fmt.Errorf("%w: embedding.api_key_env is required for the openai provider", passerr.ErrConfiguration)
		}
	}
	if e.Provider == "onnx" {
		if e.ModelPath == "" {
			return fmt.Errorf("%w: embedding.model_path is required for the onnx provider", passerr.ErrConfiguration)
		}
		if e.MaxTokens < 1 {
			return fmt.Errorf("%w: embedding.max_tokens must be at least 1 for the onnx provider", passerr.ErrConfiguration)
		}
	}
	return nil
}

func (s *StoreConfig) validate() error {
	switch s.Backend {
	case "memory":
	case "sqlite":
		if s.Path == "" {
			return fmt.Errorf("%w: store.path is required for the sqlite backend", passerr.ErrConfiguration)
		}
	case "pgvector":
		if s.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for the pgvector backend", passerr.ErrConfiguration)
		}
	case "qdrant":
		if s.URL == "" {
			return fmt.Errorf("%w: store.url is required for the qdrant backend", passerr.ErrConfiguration)
		}
		if s.Collection == "" {
			return fmt.Errorf("%w: store.collection is required for the qdrant backend", passerr.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: store.backend must be one of memory, sqlite, pgvector, qdrant (got %q)", passerr.ErrConfiguration, s.Backend)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("%w: store.timeout must be positive", passerr.ErrConfiguration)
	}
	return nil
}

func (s *SearchConfig) validate() error {
	if s.TopK < 1 {
		return fmt.Errorf("%w: search.top_k must be at least 1", passerr.ErrConfiguration)
	}
	if s.MinSimilarity < -1 || s.MinSimilarity > 1 {
		return fmt.Errorf("%w: search.min_similarity must be within [-1, 1]", passerr.ErrConfiguration)
	}
	k := s.Keyword
	if k.VectorWeight < 0 || k.KeywordWeight < 0 {
		return fmt.Errorf("%w: search.keyword weights must not be negative", passerr.ErrConfiguration)
	}
	if k.Enabled {
		if k.IndexPath == "" {
			return fmt.Errorf("%w: search.keyword.index_path is required when the keyword index is enabled", passerr.ErrConfiguration)
		}
		if k.VectorWeight == 0 && k.KeywordWeight == 0 {
			return fmt.Errorf("%w: search.keyword weights must not both be zero", passerr.ErrConfiguration)
		}
	}
	return nil
}
