package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFTextExtractor reads the embedded text layer of PDFs page by page. Other
// types, which have no text layer, go to the images extractor.
type PDFTextExtractor struct {
	images Extractor
}

func NewPDFTextExtractor(images Extractor) *PDFTextExtractor {
	return &PDFTextExtractor{images: images}
}

func (p *PDFTextExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*Result, error) {
	if !isPDF(mimeType) {
		if p.images == nil {
			return nil, fmt.Errorf("no extractor for %s", mimeType)
		}
		return p.images.Extract(ctx, data, mimeType)
	}

	if len(data) < 4 || !bytes.HasPrefix(data, []byte("%PDF")) {
		return nil, fmt.Errorf("not a PDF file: invalid header (got: %q)", data[:min(10, len(data))])
	}

	return readPages(ctx, data)
}

// readPages walks every page of data. The pdf package panics on some
// malformed documents; those panics come back as errors.
func readPages(ctx context.Context, data []byte) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("failed to parse pdf: malformed document: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pdf: %w", err)
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	pages := make([]PageText, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		text := ""
		if !page.V.IsNull() {
			text, err = page.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("failed to read page %d: %w", i, err)
			}
		}

		pages = append(pages, PageText{
			PageNumber: i,
			Text:       strings.TrimSpace(text),
		})
	}

	return &Result{TotalPages: numPages, Pages: pages}, nil
}
