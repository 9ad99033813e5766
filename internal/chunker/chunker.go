// Package chunker groups sentences into overlapping, token-bounded chunks.
package chunker

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/clearhaven/passage/internal/models"
	"github.com/clearhaven/passage/internal/passerr"
	"github.com/clearhaven/passage/internal/token"
)

// Builder converts the ordered sentence sequence of one document into
// chunks. It slides a window of sentsPerChunk sentences, carrying overlap
// sentences into the next window, and enforces the token budget per window:
// an undersized window merges forward into the next one, an oversized window
// is truncated at the largest whole-sentence prefix under the cap.
type Builder struct {
	sentsPerChunk int
	overlap       int
	minTokens     int
	maxTokens     int
	counter       token.Counter
	logger        *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder validates the chunking parameters and returns a Builder.
// Invalid parameters are a configuration error; they are never clamped.
func NewBuilder(sentsPerChunk, overlap, minTokens, maxTokens int, counter token.Counter, opts ...BuilderOption) (*Builder, error) {
	if counter == nil {
		return nil, fmt.Errorf("%w: token counter is required", passerr.ErrConfiguration)
	}
	if sentsPerChunk < 1 {
		return nil, fmt.Errorf("%w: sentences per chunk must be at least 1, got %d", passerr.ErrConfiguration, sentsPerChunk)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: sentence overlap must not be negative, got %d", passerr.ErrConfiguration, overlap)
	}
	if overlap >= sentsPerChunk {
		return nil, fmt.Errorf("%w: sentence overlap %d must be smaller than sentences per chunk %d", passerr.ErrConfiguration, overlap, sentsPerChunk)
	}
	if minTokens < 0 {
		return nil, fmt.Errorf("%w: min tokens must not be negative, got %d", passerr.ErrConfiguration, minTokens)
	}
	if maxTokens <= minTokens {
		return nil, fmt.Errorf("%w: max tokens %d must be greater than min tokens %d", passerr.ErrConfiguration, maxTokens, minTokens)
	}
	b := &Builder{
		sentsPerChunk: sentsPerChunk,
		overlap:       overlap,
		minTokens:     minTokens,
		maxTokens:     maxTokens,
		counter:       counter,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Build produces the chunk sequence for one document. Chunk indexes are
// assigned sequentially from 0 with no gaps. An empty sentence sequence
// yields an empty chunk sequence, not an error. Metadata is copied into
// every chunk.
func (b *Builder) Build(docID string, sentences []models.Sentence, metadata map[string]interface{}) []models.Chunk {
	if len(sentences) == 0 {
		return nil
	}
	step := b.sentsPerChunk - b.overlap
	var chunks []models.Chunk
	start := 0
	for start < len(sentences) {
		end := start + b.sentsPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		content := joinSentences(sentences[start:end])
		count := b.counter.Count(content)

		// Merge forward while the window is under the minimum and input
		// remains. The final chunk of a document may stay short.
		for count < b.minTokens && end < len(sentences) {
			end += step
			if end > len(sentences) {
				end = len(sentences)
			}
			content = joinSentences(sentences[start:end])
			count = b.counter.Count(content)
			b.logger.Debug("merged undersized window forward",
				zap.String("doc_id", docID),
				zap.Int("start", start),
				zap.Int("end", end),
				zap.Int("token_count", count))
		}

		// Truncate an oversized window to the largest whole-sentence
		// prefix that fits. Sentences cut here are walked again by the
		// cursor advance below, so nothing is dropped.
		emitted := end - start
		for count > b.maxTokens && emitted > 1 {
			emitted--
			content = joinSentences(sentences[start : start+emitted])
			count = b.counter.Count(content)
		}
		if count > b.maxTokens {
			// A single sentence over the cap is kept whole; there is no
			// sentence boundary left to cut at.
			b.logger.Warn("single sentence exceeds max tokens",
				zap.String("doc_id", docID),
				zap.Int("sentence_index", start),
				zap.Int("token_count", count),
				zap.Int("max_tokens", b.maxTokens))
		}

		span := sentences[start : start+emitted]
		chunks = append(chunks, models.Chunk{
			DocID:       docID,
			ChunkIndex:  len(chunks),
			Content:     content,
			TokenCount:  count,
			PageNumbers: pageNumbers(span),
			Metadata:    copyMetadata(metadata),
		})

		if start+emitted >= len(sentences) {
			break
		}
		advance := emitted - b.overlap
		if advance < 1 {
			advance = 1
		}
		start += advance
	}
	return chunks
}

func joinSentences(sentences []models.Sentence) string {
	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.Text
	}
	return strings.Join(texts, " ")
}

func pageNumbers(sentences []models.Sentence) []int {
	seen := make(map[int]struct{}, len(sentences))
	for _, s := range sentences {
		seen[s.PageNumber] = struct{}{}
	}
	pages := make([]int, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

func copyMetadata(metadata map[string]interface{}) map[string]interface{} {
	if metadata == nil {
		return nil
	}
	copied := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		copied[k] = v
	}
	return copied
}
