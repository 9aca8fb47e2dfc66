package scanning

import (
	"context"

	"github.com/zombor/terminowo/internal/extraction"
)

// Response is the document processor response envelope
type Response struct {
	Document *extraction.RecognizedDocument `json:"document,omitempty"`
}

// Scanner defines the interface for OCR operations
type Scanner interface {
	// Recognize runs OCR and entity extraction on an image or PDF
	Recognize(ctx context.Context, imageData []byte, contentType string) (*Response, error)
	// Close closes the scanner and releases resources
	Close() error
}
