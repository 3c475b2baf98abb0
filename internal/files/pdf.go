package files

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MediaTypePDF is the media type of PDF documents.
const MediaTypePDF = "application/pdf"

var pdfMagic = []byte("%PDF-")

// isPDF reports whether data starts with the PDF file header.
func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// extractPDF returns the text layer of each page, pages separated by blank
// lines. Documents without any text (scanned images) fail with ErrDecode.
func extractPDF(data []byte) (text string, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("%w: malformed pdf: %v", ErrDecode, rec)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: pdf: %v", ErrDecode, err)
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: pdf page %d: %v", ErrDecode, i, err)
		}
		if content = strings.TrimSpace(content); content != "" {
			pages = append(pages, content)
		}
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("%w: pdf has no text layer", ErrDecode)
	}
	return strings.Join(pages, "\n\n"), nil
}
