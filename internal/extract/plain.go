package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/clearhaven/passage/internal/models"
)

// readPlain returns the whole file as a single page, validating UTF-8.
// Invalid sequences are replaced with the replacement character.
func readPlain(content []byte) ([]models.Page, error) {
	text := string(content)
	if !utf8.Valid(content) {
		text = strings.ToValidUTF8(text, "�")
	}
	return singlePage(text), nil
}
