// Package ingestion turns uploaded resume documents into plain text.
package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned when the input lacks a PDF header.
var ErrNotPDF = errors.New("input is not a PDF document")

// headerWindow is how far into the file the %PDF- marker may appear.
const headerWindow = 1024

// ExtractionError reports a document that could not be read.
type ExtractionError struct {
	Page int // 0 when the failure is not tied to a page
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("pdf extraction failed on page %d: %v", e.Page, e.Err)
	}
	return fmt.Sprintf("pdf extraction failed: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extractor reads text out of PDF documents.
type Extractor struct{}

// NewExtractor returns an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the text of every page in order. Text rows on a page are
// joined by single spaces and each page ends with a line break. Any failure
// fails the whole document.
func (e *Extractor) Extract(ctx context.Context, data []byte) (text string, err error) {
	reader, err := open(data)
	if err != nil {
		return "", err
	}

	page := 0
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractionError{Page: page, Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	var sb strings.Builder
	for page = 1; page <= reader.NumPage(); page++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		p := reader.Page(page)
		if p.V.IsNull() {
			sb.WriteString("\n")
			continue
		}

		rows, err := p.GetTextByRow()
		if err != nil {
			return "", &ExtractionError{Page: page, Err: err}
		}

		parts := make([]string, 0, len(rows))
		for _, row := range rows {
			var rb strings.Builder
			for _, t := range row.Content {
				rb.WriteString(t.S)
			}
			if line := normalizeRow(rb.String()); line != "" {
				parts = append(parts, line)
			}
		}
		sb.WriteString(strings.Join(parts, " "))
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// ExtractFile reads path and extracts its text.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %w", err)
		}
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return e.Extract(ctx, data)
}

// PageCount returns the number of pages in the document.
func (e *Extractor) PageCount(data []byte) (n int, err error) {
	reader, err := open(data)
	if err != nil {
		return 0, err
	}
	defer func() {
		if r := recover(); r != nil {
			n = 0
			err = &ExtractionError{Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()
	return reader.NumPage(), nil
}

func open(data []byte) (reader *pdf.Reader, err error) {
	if !HasPDFHeader(data) {
		return nil, &ExtractionError{Err: ErrNotPDF}
	}

	defer func() {
		if r := recover(); r != nil {
			reader = nil
			err = &ExtractionError{Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	reader, err = pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}
	return reader, nil
}

// HasPDFHeader reports whether data starts like a PDF file.
func HasPDFHeader(data []byte) bool {
	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	return bytes.Contains(window, []byte("%PDF-"))
}
