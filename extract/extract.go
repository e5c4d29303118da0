// Package extract pulls plain text out of document files. Each format
// has its own Extractor; a Registry maps file extensions to them.
package extract

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Extraction is the outcome of pulling text from one file.
type Extraction struct {
	Text     string         `json:"text"`
	Pages    int            `json:"pages"`
	Method   string         `json:"extraction_method"`
	Metadata map[string]any `json:"metadata"`
}

// WordCount returns the number of whitespace-separated words.
func (e *Extraction) WordCount() int {
	return len(strings.Fields(e.Text))
}

// Extractor pulls text from a file on disk.
type Extractor interface {
	Extract(path string) (*Extraction, error)
}

// Registry maps lowercase file extensions (with leading dot) to
// extractors.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns a registry with the default extractor set:
// plain text, DOCX, PDF, and OCR for common image formats.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Extractor)}
	r.Register(PlainText{}, ".txt", ".md", ".csv", ".log")
	r.Register(Docx{}, ".docx")
	r.Register(PDF{}, ".pdf")
	ocr := NewOCR()
	r.Register(ocr, ".jpg", ".jpeg", ".png", ".bmp", ".tiff")
	return r
}

// Register binds an extractor to one or more extensions, replacing any
// previous binding.
func (r *Registry) Register(e Extractor, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// For resolves the extractor for a file path by its extension.
func (r *Registry) For(path string) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported format: %s", ext)
	}
	return e, nil
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
