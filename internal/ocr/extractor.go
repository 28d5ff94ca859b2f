// Package ocr holds the text extraction backends the processor calls.
package ocr

import (
	"context"
	"fmt"
	"strings"
)

type Extractor interface {
	// Extract returns the text of every page of the document. Implementations
	// should return promptly once ctx is done.
	Extract(ctx context.Context, data []byte, mimeType string) (*Result, error)
}

type Result struct {
	TotalPages int
	Pages      []PageText
}

type PageText struct {
	PageNumber int
	Text       string
}

const (
	BackendMock    = "mock"
	BackendPDFText = "pdftext"
)

// New returns the extractor for a configured backend name.
func New(backend string) (Extractor, error) {
	switch strings.ToLower(backend) {
	case BackendMock:
		return NewMockExtractor(), nil
	case BackendPDFText:
		return NewPDFTextExtractor(NewMockExtractor()), nil
	default:
		return nil, fmt.Errorf("unknown OCR backend: %s", backend)
	}
}

func isPDF(mimeType string) bool {
	return strings.Contains(strings.ToLower(mimeType), "pdf")
}
