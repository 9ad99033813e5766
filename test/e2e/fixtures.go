package e2e

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// FixtureExtensions covers every reader format except PDF: plain text,
// OOXML, and OpenDocument. A minimal PDF with extractable text is not
// generated here; the PDF path has its own coverage in the extract package.
var FixtureExtensions = []string{
	".txt", ".md", ".rst",
	".docx", ".xlsx", ".pptx",
	".odp", ".ods", ".odt",
}

// FixtureFile returns file bytes for the given extension whose extracted
// text contains text verbatim. text must not contain XML metacharacters.
func FixtureFile(ext, text string) ([]byte, error) {
	switch ext {
	case ".txt", ".md", ".rst":
		return []byte(text), nil
	case ".docx":
		return fixtureDocx(text), nil
	case ".pptx":
		return fixturePptx(text), nil
	case ".odp", ".ods", ".odt":
		return fixtureOpenDocument(text), nil
	case ".xlsx":
		return fixtureXlsx(text)
	}
	return nil, fmt.Errorf("no fixture builder for extension %q", ext)
}

func zipWithFile(name, content string) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create(name)
	_, _ = w.Write([]byte(content))
	_ = zw.Close()
	return buf.Bytes()
}

func fixtureDocx(text string) []byte {
	return zipWithFile("word/document.xml",
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>`+text+`</w:t></w:r></w:p></w:body></w:document>`)
}

func fixturePptx(text string) []byte {
	return zipWithFile("ppt/slides/slide1.xml",
		`<p:sld><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>`+text+`</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`)
}

// The three OpenDocument formats share one content.xml layout; text:p is
// enough for all of them.
func fixtureOpenDocument(text string) []byte {
	return zipWithFile("content.xml",
		`<office:document-content><office:body><text:p>`+text+`</text:p></office:body></office:document-content>`)
}

func fixtureXlsx(text string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellValue("Sheet1", "A1", text); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
