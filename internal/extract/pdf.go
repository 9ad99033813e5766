package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/clearhaven/passage/internal/models"
)

// readPDF returns one page per PDF page, keeping the PDF's own numbering.
// Pages that fail to extract are logged and skipped so one corrupt page
// does not sink the document.
func (r *Reader) readPDF(content []byte) ([]models.Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	numPages := reader.NumPage()
	pages := make([]models.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			r.logger.Warn("skipping unreadable pdf page",
				zap.Int("page", i),
				zap.Error(err))
			continue
		}
		pages = append(pages, models.Page{PageNumber: i, RawText: text})
	}
	return pages, nil
}
