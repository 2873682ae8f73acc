// Package ingest loads source documents, splits them into overlapping
// chunks, embeds them, and writes them to the index.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor pulls plain text out of one file format
type Extractor interface {
	Extensions() []string
	Extract(path string) (string, error)
}

// TextExtractor reads .txt and .md files as-is
type TextExtractor struct{}

func (TextExtractor) Extensions() []string { return []string{".txt", ".md"} }

func (TextExtractor) Extract(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// PDFExtractor pulls text from PDF pages
type PDFExtractor struct{}

func (PDFExtractor) Extensions() []string { return []string{".pdf"} }

func (PDFExtractor) Extract(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract page %d of %s: %w", i, path, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// extractorFor maps a file extension to its extractor, or nil if unsupported
func extractorFor(extractors []Extractor, path string) Extractor {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extractors {
		for _, supported := range e.Extensions() {
			if ext == supported {
				return e
			}
		}
	}
	return nil
}
