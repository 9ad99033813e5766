package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/clearhaven/passage/internal/models"
)

// readXLSX returns one page per sheet. Cells in a row are joined with
// spaces and each row is terminated with a period so the segmenter sees
// sentence boundaries instead of one unbroken run.
func readXLSX(content []byte) ([]models.Page, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	pages := make([]models.Page, 0, len(sheets))
	for i, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		var b strings.Builder
		for _, row := range rows {
			text := strings.TrimSpace(strings.Join(row, " "))
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(terminated(text))
		}
		pages = append(pages, models.Page{PageNumber: i + 1, RawText: b.String()})
	}
	return pages, nil
}

// terminated appends a period unless text already ends with terminal
// punctuation.
func terminated(text string) string {
	switch text[len(text)-1] {
	case '.', '!', '?':
		return text
	}
	return text + "."
}
