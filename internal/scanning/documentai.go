package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DocumentAI implements the Scanner interface by posting to a Google
// Document AI processor, usually through a proxy that holds the Google
// credentials and checks an API key
type DocumentAI struct {
	url    string
	apiKey string
	client *http.Client
}

// NewDocumentAI creates a new DocumentAI Scanner instance
func NewDocumentAI(url string, apiKey string) (*DocumentAI, error) {
	if url == "" {
		return nil, fmt.Errorf("document ai url is required")
	}

	return &DocumentAI{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

type processRequest struct {
	RawDocument rawDocument `json:"rawDocument"`
}

type rawDocument struct {
	Content  string `json:"content"`
	MimeType string `json:"mimeType"`
}

// Recognize sends the image to the processor and decodes the response
func (d *DocumentAI) Recognize(ctx context.Context, imageData []byte, contentType string) (*Response, error) {
	finalImageData, mimeType, _, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, err
	}

	reqBody := processRequest{
		RawDocument: rawDocument{
			Content:  base64.StdEncoding.EncodeToString(finalImageData),
			MimeType: mimeType,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("X-API-Key", d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling document ai: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("document ai error (status %d): %s", resp.StatusCode, string(body))
	}

	var processResp Response
	if err := json.NewDecoder(resp.Body).Decode(&processResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if doc := processResp.Document; doc != nil {
		slog.Debug("Document AI response", "text_length", textLength(doc.Text), "entities", len(doc.Entities))
	}

	return &processResp, nil
}

// Close is a no-op for the HTTP client
func (d *DocumentAI) Close() error {
	return nil
}

func textLength(text *string) int {
	if text == nil {
		return 0
	}
	return len(*text)
}
