package extract

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// PDF pulls literal text strings out of uncompressed PDF content
// streams. Compressed streams and CID fonts are out of scope; scanned
// PDFs go through OCR instead.
type PDF struct{}

func (PDF) Extract(path string) (*Extraction, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if !bytes.HasPrefix(raw, []byte("%PDF-")) {
		return nil, fmt.Errorf("not a pdf file: %s", path)
	}

	pages := bytes.Count(raw, []byte("/Type /Page")) - bytes.Count(raw, []byte("/Type /Pages"))
	if pages < 1 {
		pages = 1
	}

	metadata := map[string]any{}
	for _, key := range []string{"Title", "Author", "Subject", "Creator"} {
		if v := infoString(raw, key); v != "" {
			metadata[strings.ToLower(key)] = v
		}
	}

	var lines []string
	for _, block := range textBlocks(raw) {
		var parts []string
		for _, s := range literalStrings(block) {
			if s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, ""))
		}
	}

	return &Extraction{
		Text:     strings.TrimSpace(strings.Join(lines, "\n")),
		Pages:    pages,
		Method:   "pdf",
		Metadata: metadata,
	}, nil
}

// infoString reads a document-info value like /Title (My Doc).
func infoString(raw []byte, key string) string {
	marker := []byte("/" + key + " (")
	i := bytes.Index(raw, marker)
	if i < 0 {
		return ""
	}
	rest := raw[i+len(marker)-1:]
	ss := literalStrings(rest)
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}

// textBlocks returns the BT..ET segments of the document.
func textBlocks(raw []byte) [][]byte {
	var blocks [][]byte
	for {
		i := bytes.Index(raw, []byte("BT"))
		if i < 0 {
			break
		}
		raw = raw[i+2:]
		j := bytes.Index(raw, []byte("ET"))
		if j < 0 {
			break
		}
		blocks = append(blocks, raw[:j])
		raw = raw[j+2:]
	}
	return blocks
}

// literalStrings collects balanced ( ... ) literals, honoring the
// standard backslash escapes.
func literalStrings(b []byte) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case c == '\\' && depth > 0 && i+1 < len(b):
			i++
			switch b[i] {
			case 'n':
				cur.WriteByte('\n')
			case 't':
				cur.WriteByte('\t')
			case 'r':
				cur.WriteByte('\r')
			case '(', ')', '\\':
				cur.WriteByte(b[i])
			}
		case c == '(':
			depth++
			if depth > 1 {
				cur.WriteByte(c)
			}
		case c == ')':
			depth--
			if depth > 0 {
				cur.WriteByte(c)
			} else if depth == 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
		case depth > 0:
			cur.WriteByte(c)
		}
	}
	return out
}
