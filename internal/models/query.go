package models

import (
	"fmt"

	"github.com/clearhaven/passage/internal/passerr"
)

// QueryMode selects how query results are ranked.
type QueryMode string

const (
	// ModeVector ranks by cosine similarity between embeddings (default).
	ModeVector QueryMode = "vector"
	// ModeKeyword ranks by keyword index score. Requires the keyword index.
	ModeKeyword QueryMode = "keyword"
	// ModeHybrid fuses keyword and vector scores with configured weights.
	ModeHybrid QueryMode = "hybrid"
)

// QueryRequest is a retrieval request against the chunk store.
type QueryRequest struct {
	Query  string    `json:"query"`
	TopK   int       `json:"top_k,omitempty"`
	Filter Filter    `json:"filter,omitempty"`
	Mode   QueryMode `json:"mode,omitempty"`
}

// Validate checks the request and normalizes its mode.
// TopK <= 0 is left as-is; the retriever substitutes the configured default.
func (q *QueryRequest) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", passerr.ErrValidation)
	}
	switch q.Mode {
	case "":
		q.Mode = ModeVector
	case ModeVector, ModeKeyword, ModeHybrid:
	default:
		return fmt.Errorf("%w: unknown query mode %q (supported: vector, keyword, hybrid)", passerr.ErrValidation, q.Mode)
	}
	return nil
}

// QueryResult is one retrieved chunk with the score it was ranked by:
// raw cosine similarity in [-1, 1] for vector retrieval, a [0, 1] score
// normalized by the best hit for keyword and hybrid retrieval.
type QueryResult struct {
	Chunk      Chunk   `json:"chunk"`
	Similarity float64 `json:"similarity"`
	// KeywordScore is the normalized keyword component, populated in
	// keyword and hybrid modes. Combined repeats the fused hybrid score.
	KeywordScore float64 `json:"keyword_score,omitempty"`
	Combined     float64 `json:"combined_score,omitempty"`
}

// QueryResponse wraps ranked results for one retrieval call.
type QueryResponse struct {
	Query     string        `json:"query"`
	Mode      QueryMode     `json:"mode"`
	Results   []QueryResult `json:"results"`
	QueryTime int64         `json:"query_time_ms"`
}
