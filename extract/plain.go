package extract

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// PlainText reads a file as UTF-8, falling back to common single-byte
// encodings when the content is not valid UTF-8.
type PlainText struct{}

var fallbackEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"latin-1", charmap.ISO8859_1},
	{"cp1252", charmap.Windows1252},
}

func (PlainText) Extract(path string) (*Extraction, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	text := string(raw)
	enc := "utf-8"
	if !utf8.Valid(raw) {
		decoded := false
		for _, fb := range fallbackEncodings {
			out, derr := fb.enc.NewDecoder().Bytes(raw)
			if derr == nil {
				text = string(out)
				enc = fb.name
				decoded = true
				break
			}
		}
		if !decoded {
			return nil, fmt.Errorf("undecodable text file: %s", path)
		}
	}

	return &Extraction{
		Text:     strings.TrimSpace(text),
		Pages:    1,
		Method:   "plain_text",
		Metadata: map[string]any{"encoding": enc},
	}, nil
}
