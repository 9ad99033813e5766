package search

import (
	"github.com/clearhaven/passage/internal/keyword"
	"github.com/clearhaven/passage/internal/models"
)

type chunkKey struct {
	docID      string
	chunkIndex int
}

// fuseResults merges the two branches into one ranking. Vector similarity is
// mapped from [-1,1] to [0,1]; keyword scores are normalized by the best hit.
// A chunk found by both branches sums its weighted scores and keeps the
// vector branch's chunk payload.
func fuseResults(vectorResults []models.QueryResult, keywordHits []keyword.Hit, vectorWeight, keywordWeight float64) []models.QueryResult {
	type entry struct {
		chunk   models.Chunk
		score   float64
		keyword float64
	}
	merged := make(map[chunkKey]*entry, len(vectorResults)+len(keywordHits))

	for _, res := range vectorResults {
		key := chunkKey{res.Chunk.DocID, res.Chunk.ChunkIndex}
		merged[key] = &entry{chunk: res.Chunk, score: vectorWeight * toUnitRange(res.Similarity)}
	}

	maxScore := maxHitScore(keywordHits)
	for _, hit := range keywordHits {
		normalized := 0.0
		if maxScore > 0 {
			normalized = hit.Score / maxScore
		}
		key := chunkKey{hit.Chunk.DocID, hit.Chunk.ChunkIndex}
		if e, ok := merged[key]; ok {
			e.score += keywordWeight * normalized
			e.keyword = normalized
		} else {
			merged[key] = &entry{chunk: hit.Chunk, score: keywordWeight * normalized, keyword: normalized}
		}
	}

	results := make([]models.QueryResult, 0, len(merged))
	for _, e := range merged {
		results = append(results, models.QueryResult{
			Chunk:        e.chunk,
			Similarity:   e.score,
			KeywordScore: e.keyword,
			Combined:     e.score,
		})
	}
	sortResults(results)
	return results
}

// toUnitRange maps cosine similarity onto [0,1].
func toUnitRange(similarity float64) float64 {
	s := (similarity + 1) / 2
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func maxHitScore(hits []keyword.Hit) float64 {
	max := 0.0
	for _, h := range hits {
		if h.Score > max {
			max = h.Score
		}
	}
	return max
}
