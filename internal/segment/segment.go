package segment

import (
	"strings"
	"unicode"

	"github.com/clearhaven/passage/internal/models"
)

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// Split segments normalized page text into ordered sentences carrying the
// page number. A boundary falls immediately after a run of '.', '!' or '?'
// that is followed by whitespace; the punctuation stays attached to the
// preceding sentence. Text with no terminal punctuation becomes a single
// sentence. Whitespace-only candidates are dropped, so empty text yields
// no sentences. Split keeps no state across calls.
func Split(text string, pageNumber int) []models.Sentence {
	runes := []rune(text)
	var sentences []models.Sentence
	emit := func(start, end int) {
		s := strings.TrimSpace(string(runes[start:end]))
		if s == "" {
			return
		}
		sentences = append(sentences, models.Sentence{Text: s, PageNumber: pageNumber})
	}

	start := 0
	i := 0
	for i < len(runes) {
		if !isTerminal(runes[i]) {
			i++
			continue
		}
		j := i
		for j < len(runes) && isTerminal(runes[j]) {
			j++
		}
		if j < len(runes) && unicode.IsSpace(runes[j]) {
			emit(start, j)
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			start = j
		}
		i = j
	}
	// Tail after the last boundary, or the whole text when no boundary was
	// found. Nothing is ever dropped.
	emit(start, len(runes))
	return sentences
}

// SplitPages normalizes and segments each page in order and returns the
// flattened sentence sequence for the document. Pages that normalize to
// nothing contribute no sentences.
func SplitPages(pages []models.Page) []models.Sentence {
	var sentences []models.Sentence
	for _, page := range pages {
		normalized := Normalize(page.RawText)
		if normalized == "" {
			continue
		}
		sentences = append(sentences, Split(normalized, page.PageNumber)...)
	}
	return sentences
}
