package files

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/go-enry/go-enry/v2"
	"github.com/xuri/excelize/v2"
)

// Supported media types.
const (
	MediaTypeText     = "text/plain"
	MediaTypeMarkdown = "text/markdown"
	MediaTypeCSV      = "text/csv"
	MediaTypeVTT      = "text/vtt"
	MediaTypeJSON     = "application/json"
	MediaTypeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaTypeXLSX     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mediaTypeOctet    = "application/octet-stream"
)

var extensionTypes = map[string]string{
	".txt":  MediaTypeText,
	".md":   MediaTypeMarkdown,
	".csv":  MediaTypeCSV,
	".vtt":  MediaTypeVTT,
	".json": MediaTypeJSON,
	".docx": MediaTypeDOCX,
	".xlsx": MediaTypeXLSX,
	".pdf":  MediaTypePDF,
}

// DetectMediaType picks the media type of a downloaded file. A specific
// Content-Type header wins; otherwise the URL path extension decides.
// It returns mediaTypeOctet when neither is conclusive.
func DetectMediaType(rawURL, contentType string) string {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != mediaTypeOctet {
			return mt
		}
	}

	ext := strings.ToLower(path.Ext(urlPath(rawURL)))
	if mt, ok := extensionTypes[ext]; ok {
		return mt
	}
	return mediaTypeOctet
}

// ExtractText converts file bytes of the given media type to text. Files of
// any other type are read as PDF when they carry a PDF header.
func ExtractText(data []byte, mediaType string) (string, error) {
	switch mediaType {
	case MediaTypeText, MediaTypeMarkdown, MediaTypeCSV, MediaTypeVTT, MediaTypeJSON:
		return extractPlain(data)
	case MediaTypeDOCX:
		return extractDOCX(data)
	case MediaTypeXLSX:
		return extractXLSX(data)
	case MediaTypePDF:
		return extractPDF(data)
	default:
		if isPDF(data) {
			return extractPDF(data)
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mediaType)
	}
}

func extractPlain(data []byte) (string, error) {
	if enry.IsBinary(data) {
		return "", fmt.Errorf("%w: binary content in text file", ErrDecode)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: file is not valid UTF-8", ErrDecode)
	}
	return string(data), nil
}

// extractDOCX returns the non-empty paragraphs of word/document.xml joined
// by blank lines.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: docx archive: %v", ErrDecode, err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("%w: docx has no word/document.xml", ErrDecode)
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open document part: %v", ErrDecode, err)
	}
	defer func() { _ = rc.Close() }()

	paragraphs, err := docxParagraphs(rc)
	if err != nil {
		return "", fmt.Errorf("%w: parse document part: %v", ErrDecode, err)
	}
	return strings.Join(paragraphs, "\n\n"), nil
}

func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, current.String())
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}

// extractXLSX renders each sheet as a titled block of tab-separated rows.
func extractXLSX(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: xlsx workbook: %v", ErrDecode, err)
	}
	defer func() { _ = f.Close() }()

	var blocks []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("%w: read sheet %q: %v", ErrDecode, sheet, err)
		}

		var b strings.Builder
		b.WriteString("## ")
		b.WriteString(sheet)
		for _, row := range rows {
			b.WriteByte('\n')
			b.WriteString(strings.Join(row, "\t"))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n"), nil
}
