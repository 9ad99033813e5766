package models

import "time"

// Document is the registry entry for an ingested document.
type Document struct {
	ID          string    `json:"id" db:"id"`
	Path        string    `json:"path,omitempty" db:"path"`
	Title       string    `json:"title" db:"title"`
	ContentHash string    `json:"content_hash" db:"content_hash"`
	ChunkCount  int       `json:"chunk_count" db:"chunk_count"`
	IngestedAt  time.Time `json:"ingested_at" db:"ingested_at"`
}

// Filter restricts retrieval to chunks whose metadata contains every
// filter key with an equal value. A nil or empty filter matches everything.
type Filter map[string]interface{}

// Matches reports whether metadata satisfies the filter by superset
// containment. Numeric values compare by value regardless of type, so a
// filter written with an int still matches metadata decoded from JSON.
func (f Filter) Matches(metadata map[string]interface{}) bool {
	if len(f) == 0 {
		return true
	}
	for key, want := range f {
		got, ok := metadata[key]
		if !ok {
			return false
		}
		if !filterValueEqual(want, got) {
			return false
		}
	}
	return true
}

func filterValueEqual(a, b interface{}) bool {
	if a == b {
		return true
	}
	// JSON decoding turns ints into float64; compare numerics by value.
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
