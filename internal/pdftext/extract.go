// Package pdftext extracts plain text and document metadata from PDF files.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/lexai-study/lexai-retrieval/internal/chunking"
	"github.com/lexai-study/lexai-retrieval/internal/errs"
)

// ErrNoText is returned when a PDF parses but yields no text (for example a scanned image).
var ErrNoText = errors.New("no text could be extracted from pdf")

// Document is the extraction result for one PDF.
type Document struct {
	Text     string // Page texts joined by blank lines, uncleaned
	Info     chunking.DocumentInfo
	FileSize int64
}

// ExtractFile reads and extracts the PDF at path.
func ExtractFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.E(errs.Extraction, "extract pdf", err)
	}
	return ExtractBytes(data, filepath.Base(path))
}

// ExtractBytes extracts an in-memory PDF. filename feeds the title fallback.
func ExtractBytes(data []byte, filename string) (*Document, error) {
	return Extract(bytes.NewReader(data), int64(len(data)), filename)
}

// Extract reads every page's plain text and the Title/Author info entries.
// Unreadable or textless files are extraction failures.
func Extract(r io.ReaderAt, size int64, filename string) (doc *Document, err error) {
	const op = "extract pdf"

	// The parser panics on some malformed inputs.
	defer func() {
		if p := recover(); p != nil {
			doc, err = nil, errs.Errorf(errs.Extraction, op, "%s: malformed pdf: %v", filename, p)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, errs.E(errs.Extraction, op, fmt.Errorf("%s: %w", filename, err))
	}

	var pages []string
	n := reader.NumPage()
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, errs.E(errs.Extraction, op, fmt.Errorf("%s page %d: %w", filename, i, err))
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	text := strings.Join(pages, "\n\n")
	if strings.TrimSpace(text) == "" {
		return nil, errs.E(errs.Extraction, op, fmt.Errorf("%s: %w", filename, ErrNoText))
	}

	info := reader.Trailer().Key("Info")
	return &Document{
		Text: text,
		Info: chunking.DocumentInfo{
			Filename:  filename,
			Title:     Title(strings.TrimSpace(info.Key("Title").Text()), filename),
			Author:    strings.TrimSpace(info.Key("Author").Text()),
			PageCount: n,
		},
		FileSize: size,
	}, nil
}

// Title returns metaTitle, or when it is empty a title derived from the
// filename: extension dropped, underscores and hyphens turned into spaces.
func Title(metaTitle, filename string) string {
	if metaTitle != "" {
		return metaTitle
	}
	base := filepath.Base(filename)
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".pdf") {
		base = strings.TrimSuffix(base, ext)
	}
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}
