package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/zombor/terminowo/internal/extraction"
)

// Tesseract implements the Scanner interface with a local Tesseract install.
// It only produces the document text, so dates have to be entered by hand.
type Tesseract struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseract creates a new Tesseract Scanner instance.
// languages are Tesseract language codes, e.g. "pol", "eng".
func NewTesseract(languages []string) (*Tesseract, error) {
	langs := make([]string, 0, len(languages))
	for _, l := range languages {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		langs = []string{"eng"}
	}

	return &Tesseract{
		languages:     langs,
		clientFactory: gosseract.NewClient,
	}, nil
}

// Recognize returns the text Tesseract finds in the image
func (t *Tesseract) Recognize(ctx context.Context, imageData []byte, contentType string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	finalImageData, _, _, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, err
	}

	client := t.clientFactory()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("setting languages: %w", err)
	}
	if err := client.SetImageFromBytes(finalImageData); err != nil {
		return nil, fmt.Errorf("setting image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("recognizing text: %w", err)
	}

	return &Response{
		Document: &extraction.RecognizedDocument{
			Text: &text,
		},
	}, nil
}

// Close is a no-op; clients are created per request
func (t *Tesseract) Close() error {
	return nil
}
