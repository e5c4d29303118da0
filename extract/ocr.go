package extract

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// OCR shells out to the tesseract binary. Extraction fails when the
// binary is not on PATH.
type OCR struct {
	Binary    string
	Languages string
}

// NewOCR returns an OCR extractor with the default binary name and
// Spanish plus English language data.
func NewOCR() *OCR {
	return &OCR{Binary: "tesseract", Languages: "spa+eng"}
}

// Available reports whether the OCR binary can be found on PATH.
func (o *OCR) Available() bool {
	_, err := exec.LookPath(o.Binary)
	return err == nil
}

func (o *OCR) Extract(path string) (*Extraction, error) {
	bin, err := exec.LookPath(o.Binary)
	if err != nil {
		return nil, fmt.Errorf("ocr unavailable: %w", err)
	}

	cmd := exec.Command(bin, path, "stdout", "-l", o.Languages)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ocr failed: %v: %s", err, strings.TrimSpace(stderr.String()))
	}

	return &Extraction{
		Text:   strings.TrimSpace(stdout.String()),
		Pages:  1,
		Method: "ocr",
		Metadata: map[string]any{
			"languages": o.Languages,
		},
	}, nil
}
