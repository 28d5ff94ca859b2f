package ocr

import (
	"context"
	"fmt"
)

const mockPDFPages = 3

// MockExtractor stands in for a real OCR service: PDFs come back as three
// fixed pages, anything else as a single image page.
type MockExtractor struct{}

func NewMockExtractor() *MockExtractor {
	return &MockExtractor{}
}

func (m *MockExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if isPDF(mimeType) {
		pages := make([]PageText, 0, mockPDFPages)
		for i := 1; i <= mockPDFPages; i++ {
			pages = append(pages, PageText{
				PageNumber: i,
				Text:       fmt.Sprintf("This is the content of page %d.", i),
			})
		}
		return &Result{TotalPages: mockPDFPages, Pages: pages}, nil
	}

	return &Result{
		TotalPages: 1,
		Pages: []PageText{
			{PageNumber: 1, Text: "This is the content of the image."},
		},
	}, nil
}
