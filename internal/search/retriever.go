// Package search embeds query text and retrieves the best matching chunks
// from the vector store, with optional keyword and hybrid modes on top.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clearhaven/passage/internal/keyword"
	"github.com/clearhaven/passage/internal/models"
	"github.com/clearhaven/passage/internal/passerr"
	"github.com/clearhaven/passage/internal/vector"
)

// Embedder is the slice of the embedding stack the retriever needs.
// *embedding.Batcher satisfies it.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

const (
	defaultTopK          = 8
	defaultVectorWeight  = 0.7
	defaultKeywordWeight = 0.3
)

// Retriever answers queries against an ingested corpus. The query embedding
// uses the same provider configuration as ingestion, so query and chunk
// vectors live in the same space.
type Retriever struct {
	embedder      Embedder
	store         vector.Store
	keyword       *keyword.Index
	defaultK      int
	minSimilarity float64
	vectorWeight  float64
	keywordWeight float64
	logger        *zap.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithDefaultK sets the result count used when a caller passes k <= 0.
func WithDefaultK(k int) RetrieverOption {
	return func(r *Retriever) {
		r.defaultK = k
	}
}

// WithMinSimilarity drops vector results scoring below min. Zero disables
// the cut.
func WithMinSimilarity(min float64) RetrieverOption {
	return func(r *Retriever) {
		r.minSimilarity = min
	}
}

// WithKeywordIndex enables the keyword and hybrid modes.
func WithKeywordIndex(idx *keyword.Index) RetrieverOption {
	return func(r *Retriever) {
		r.keyword = idx
	}
}

// WithFusionWeights sets the hybrid score weights.
func WithFusionWeights(vectorWeight, keywordWeight float64) RetrieverOption {
	return func(r *Retriever) {
		r.vectorWeight = vectorWeight
		r.keywordWeight = keywordWeight
	}
}

// WithRetrieverLogger sets the logger. Default is a no-op logger.
func WithRetrieverLogger(logger *zap.Logger) RetrieverOption {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// NewRetriever creates a Retriever over the embedder and store.
func NewRetriever(embedder Embedder, store vector.Store, opts ...RetrieverOption) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", passerr.ErrConfiguration)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: vector store is required", passerr.ErrConfiguration)
	}
	r := &Retriever{
		embedder:      embedder,
		store:         store,
		defaultK:      defaultTopK,
		vectorWeight:  defaultVectorWeight,
		keywordWeight: defaultKeywordWeight,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.defaultK < 1 {
		return nil, fmt.Errorf("%w: default k must be at least 1, got %d", passerr.ErrConfiguration, r.defaultK)
	}
	if r.vectorWeight < 0 || r.keywordWeight < 0 || r.vectorWeight+r.keywordWeight == 0 {
		return nil, fmt.Errorf("%w: fusion weights must be non-negative and not both zero", passerr.ErrConfiguration)
	}
	return r, nil
}

// Search dispatches to the retrieval mode. Results carry the mode's ranking
// score in Similarity: raw cosine for vector, a [0,1] normalized score for
// keyword and hybrid.
func (r *Retriever) Search(ctx context.Context, mode models.QueryMode, query string, k int, filter models.Filter) ([]models.QueryResult, error) {
	switch mode {
	case models.ModeVector, "":
		return r.Retrieve(ctx, query, k, filter)
	case models.ModeKeyword:
		return r.RetrieveKeyword(ctx, query, k, filter)
	case models.ModeHybrid:
		return r.RetrieveHybrid(ctx, query, k, filter)
	}
	return nil, fmt.Errorf("%w: unknown query mode %q (supported: vector, keyword, hybrid)", passerr.ErrValidation, mode)
}

// Retrieve returns the top k chunks by descending cosine similarity to the
// query, restricted to filter matches. Fewer than k matches returns what
// exists; no matches is an empty result, not an error. k <= 0 uses the
// configured default.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, filter models.Filter) ([]models.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", passerr.ErrValidation)
	}
	k = r.resolveK(k)

	queryVec, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := r.store.Query(ctx, queryVec, k, filter)
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}
	results = r.cutMinSimilarity(results)

	// Tie order must not depend on the backend.
	sortResults(results)
	if results == nil {
		results = []models.QueryResult{}
	}
	r.logger.Debug("vector retrieval",
		zap.Int("k", k),
		zap.Int("results", len(results)))
	return results, nil
}

// RetrieveKeyword returns the top k chunks by Bleve relevance, normalized by
// the best score so Similarity lands in [0,1]. Filter matches are applied to
// the hits' metadata.
func (r *Retriever) RetrieveKeyword(ctx context.Context, query string, k int, filter models.Filter) ([]models.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", passerr.ErrValidation)
	}
	if r.keyword == nil {
		return nil, fmt.Errorf("%w: keyword index is not enabled", passerr.ErrConfiguration)
	}
	k = r.resolveK(k)

	hits, err := r.searchKeyword(ctx, query, candidateLimit(k), filter)
	if err != nil {
		return nil, err
	}
	results := make([]models.QueryResult, 0, len(hits))
	maxScore := maxHitScore(hits)
	for _, h := range hits {
		score := 0.0
		if maxScore > 0 {
			score = h.Score / maxScore
		}
		results = append(results, models.QueryResult{
			Chunk:        h.Chunk,
			Similarity:   score,
			KeywordScore: score,
		})
	}
	sortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// RetrieveHybrid runs the vector and keyword branches concurrently and fuses
// their normalized scores with the configured weights.
func (r *Retriever) RetrieveHybrid(ctx context.Context, query string, k int, filter models.Filter) ([]models.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", passerr.ErrValidation)
	}
	if r.keyword == nil {
		return nil, fmt.Errorf("%w: keyword index is not enabled", passerr.ErrConfiguration)
	}
	k = r.resolveK(k)
	candidates := candidateLimit(k)

	var (
		vectorResults []models.QueryResult
		keywordHits   []keyword.Hit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		queryVec, err := r.embedder.EmbedOne(gctx, query)
		if err != nil {
			return fmt.Errorf("embed query: %w", err)
		}
		results, err := r.store.Query(gctx, queryVec, candidates, filter)
		if err != nil {
			return fmt.Errorf("query store: %w", err)
		}
		vectorResults = r.cutMinSimilarity(results)
		return nil
	})
	g.Go(func() error {
		hits, err := r.searchKeyword(gctx, query, candidates, filter)
		if err != nil {
			return err
		}
		keywordHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := fuseResults(vectorResults, keywordHits, r.vectorWeight, r.keywordWeight)
	if len(results) > k {
		results = results[:k]
	}
	r.logger.Debug("hybrid retrieval",
		zap.Int("vector_candidates", len(vectorResults)),
		zap.Int("keyword_candidates", len(keywordHits)),
		zap.Int("results", len(results)))
	return results, nil
}

// SuggestQuery returns a corrected query for the "did you mean" hint on
// empty keyword results. ok is false when the index is disabled or every
// term already matches the dictionary.
func (r *Retriever) SuggestQuery(query string) (string, bool) {
	if r.keyword == nil {
		return "", false
	}
	return r.keyword.SuggestQuery(query)
}

// searchKeyword applies the metadata filter to keyword hits. Bleve has no
// pushdown for our filter semantics; hits carry their metadata, so the
// recheck is local.
func (r *Retriever) searchKeyword(ctx context.Context, query string, limit int, filter models.Filter) ([]keyword.Hit, error) {
	hits, err := r.keyword.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(filter) == 0 {
		return hits, nil
	}
	kept := hits[:0]
	for _, h := range hits {
		if filter.Matches(h.Chunk.Metadata) {
			kept = append(kept, h)
		}
	}
	return kept, nil
}

func (r *Retriever) resolveK(k int) int {
	if k <= 0 {
		return r.defaultK
	}
	return k
}

func (r *Retriever) cutMinSimilarity(results []models.QueryResult) []models.QueryResult {
	if r.minSimilarity <= 0 {
		return results
	}
	kept := results[:0]
	for _, res := range results {
		if res.Similarity >= r.minSimilarity {
			kept = append(kept, res)
		}
	}
	return kept
}

// candidateLimit over-fetches so fusion and filtering still have k good
// results to choose from.
func candidateLimit(k int) int {
	if c := k * 3; c > 24 {
		return c
	}
	return 24
}

// sortResults orders by similarity descending with DocID then ChunkIndex as
// tie breaks, so equal scores rank deterministically.
func sortResults(results []models.QueryResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].Chunk.DocID != results[j].Chunk.DocID {
			return results[i].Chunk.DocID < results[j].Chunk.DocID
		}
		return results[i].Chunk.ChunkIndex < results[j].Chunk.ChunkIndex
	})
}
