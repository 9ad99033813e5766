package keyword

import (
	"fmt"
	"sort"
	"strings"
)

const suggestMaxDistance = 2

// Suggest returns up to max indexed terms within edit distance 2 of term,
// nearest first, then by how many chunks contain them. Callers use it for a
// "did you mean" hint when a keyword search comes back empty.
func (k *Index) Suggest(term string, max int) ([]string, error) {
	if max <= 0 || term == "" {
		return nil, nil
	}
	// The standard analyzer lowercases everything it indexes.
	term = strings.ToLower(term)

	dict, err := k.index.FieldDict("content")
	if err != nil {
		return nil, fmt.Errorf("open term dictionary: %w", err)
	}
	defer dict.Close()

	type candidate struct {
		term     string
		distance int
		count    uint64
	}
	var candidates []candidate

	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("read term dictionary: %w", err)
		}
		if entry == nil {
			break
		}
		if entry.Term == term {
			continue
		}
		// Length difference bounds the edit distance.
		if diff := len(entry.Term) - len(term); diff > suggestMaxDistance || diff < -suggestMaxDistance {
			continue
		}
		if d := levenshtein(term, entry.Term); d <= suggestMaxDistance {
			candidates = append(candidates, candidate{term: entry.Term, distance: d, count: entry.Count})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].term < candidates[j].term
	})
	if len(candidates) > max {
		candidates = candidates[:max]
	}

	terms := make([]string, len(candidates))
	for i, c := range candidates {
		terms[i] = c.term
	}
	return terms, nil
}

// SuggestQuery rewrites query with each term missing from the dictionary
// replaced by its nearest indexed neighbor. ok is false when nothing was
// replaced.
func (k *Index) SuggestQuery(query string) (corrected string, ok bool) {
	terms := strings.Fields(strings.ToLower(query))
	replaced := false
	for i, term := range terms {
		known, err := k.HasTerm(term)
		if err != nil || known {
			continue
		}
		if suggestions, err := k.Suggest(term, 1); err == nil && len(suggestions) > 0 {
			terms[i] = suggestions[0]
			replaced = true
		}
	}
	if !replaced {
		return "", false
	}
	return strings.Join(terms, " "), true
}

// HasTerm reports whether term appears in the content dictionary. The
// dictionary is sorted, so an exact match is the first prefix entry.
func (k *Index) HasTerm(term string) (bool, error) {
	dict, err := k.index.FieldDictPrefix("content", []byte(term))
	if err != nil {
		return false, fmt.Errorf("open term dictionary: %w", err)
	}
	defer dict.Close()

	entry, err := dict.Next()
	if err != nil {
		return false, fmt.Errorf("read term dictionary: %w", err)
	}
	return entry != nil && entry.Term == term, nil
}

// levenshtein is the edit distance over runes, two rows of the DP matrix at
// a time.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
