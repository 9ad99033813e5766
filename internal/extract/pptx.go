package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/clearhaven/passage/internal/models"
)

// slidePathRe matches slide XML files inside a .pptx zip and captures the
// slide number. Zip entry order is not slide order, so the number decides.
var slidePathRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// atTag matches <a:t>text</a:t> with any attributes on the opening tag.
var atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

// readPPTX returns one page per slide, ordered by slide number. All <a:t>
// text nodes in a slide are collected.
func readPPTX(content []byte) ([]models.Page, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("read pptx: not a zip: %w", err)
	}

	slides := make(map[int]string)
	for _, f := range zr.File {
		matches := slidePathRe.FindStringSubmatch(f.Name)
		if matches == nil {
			continue
		}
		number, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("read pptx: %s: %w", f.Name, err)
		}
		var b strings.Builder
		for _, p := range atTag.FindAllStringSubmatch(string(data), -1) {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimSpace(p[1]))
		}
		slides[number] = strings.TrimSpace(b.String())
	}

	numbers := make([]int, 0, len(slides))
	for n := range slides {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	pages := make([]models.Page, 0, len(numbers))
	for _, n := range numbers {
		pages = append(pages, models.Page{PageNumber: n, RawText: slides[n]})
	}
	return pages, nil
}
