package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/clearhaven/passage/internal/models"
)

// odContentPath is the main content file inside OpenDocument packages
// (.odp presentations, .ods spreadsheets, .odt text documents).
const odContentPath = "content.xml"

// OpenDocument text elements, with optional attributes. Separate patterns
// keep opening and closing tags paired.
var (
	odTextP    = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odTextSpan = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odTextH    = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)
)

// readOpenDocument extracts text:p, text:span, and text:h content from an
// OpenDocument package as a single page. The three formats share the same
// content.xml structure; only the surrounding body elements differ.
func readOpenDocument(content []byte, ext string) ([]models.Page, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("read %s: not a zip: %w", strings.TrimPrefix(ext, "."), err)
	}
	var contentXML []byte
	for _, f := range zr.File {
		if f.Name != odContentPath {
			continue
		}
		contentXML, err = readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %s: %w", strings.TrimPrefix(ext, "."), f.Name, err)
		}
		break
	}
	if contentXML == nil {
		return nil, fmt.Errorf("read %s: %s not found", strings.TrimPrefix(ext, "."), odContentPath)
	}

	s := string(contentXML)
	var b strings.Builder
	appendMatches := func(parts [][]string) {
		for _, p := range parts {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimSpace(p[1]))
		}
	}
	appendMatches(odTextP.FindAllStringSubmatch(s, -1))
	appendMatches(odTextSpan.FindAllStringSubmatch(s, -1))
	appendMatches(odTextH.FindAllStringSubmatch(s, -1))
	return singlePage(strings.TrimSpace(b.String())), nil
}
