// Package segment normalizes raw page text and splits it into sentences.
package segment

import (
	"strings"
	"unicode"
)

// Normalize cleans raw page text for segmentation: words hyphenated across
// line breaks are joined back together, remaining whitespace runs (including
// newlines) collapse to a single space, and the result is trimmed.
// Empty input yields empty output.
func Normalize(text string) string {
	return collapseWhitespace(dehyphenate(text))
}

// dehyphenate removes a hyphen that sits immediately before a line break
// when the text resumes with a lowercase letter, joining the two word
// fragments. Any other hyphen is kept as-is.
func dehyphenate(text string) string {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '-' {
			b.WriteRune(r)
			continue
		}
		j := i + 1
		for j < len(runes) && runes[j] == '\r' {
			j++
		}
		if j < len(runes) && runes[j] == '\n' {
			j++
			for j < len(runes) && (runes[j] == ' ' || runes[j] == '\t') {
				j++
			}
			if j < len(runes) && unicode.IsLower(runes[j]) {
				// Word split: drop the hyphen and the break, resume at the letter.
				i = j - 1
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

func collapseWhitespace(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
