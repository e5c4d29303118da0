package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Docx extracts paragraph and table text from word/document.xml inside
// the DOCX zip container.
type Docx struct{}

// Minimal WordprocessingML subset: a body holds paragraphs and tables,
// a table cell holds paragraphs, and runs carry the text nodes.
type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
		Tables     []docxTable     `xml:"tbl"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text string `xml:"t"`
	} `xml:"r"`
}

type docxTable struct {
	Rows []struct {
		Cells []struct {
			Paragraphs []docxParagraph `xml:"p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

func (p docxParagraph) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.Text)
	}
	return strings.TrimSpace(b.String())
}

func (Docx) Extract(path string) (*Extraction, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	var doc docxDocument
	found := false
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
		if err := xml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}
		found = true
		break
	}
	if !found {
		return nil, fmt.Errorf("not a docx file: missing word/document.xml")
	}

	var paragraphs []string
	for _, p := range doc.Body.Paragraphs {
		if t := p.text(); t != "" {
			paragraphs = append(paragraphs, t)
		}
	}
	text := strings.Join(paragraphs, "\n")

	var tableRows []string
	for _, tbl := range doc.Body.Tables {
		for _, row := range tbl.Rows {
			var cells []string
			for _, cell := range row.Cells {
				var parts []string
				for _, p := range cell.Paragraphs {
					if t := p.text(); t != "" {
						parts = append(parts, t)
					}
				}
				if len(parts) > 0 {
					cells = append(cells, strings.Join(parts, " "))
				}
			}
			if len(cells) > 0 {
				tableRows = append(tableRows, strings.Join(cells, " | "))
			}
		}
	}
	if len(tableRows) > 0 {
		text += "\n\nTABLAS:\n" + strings.Join(tableRows, "\n")
	}

	return &Extraction{
		Text:   strings.TrimSpace(text),
		Pages:  1,
		Method: "docx",
		Metadata: map[string]any{
			"paragraphs_count": len(paragraphs),
			"tables_count":     len(doc.Body.Tables),
		},
	}, nil
}
