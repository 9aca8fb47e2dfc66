package scanning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zombor/terminowo/internal/extraction"
)

// parseDocumentJSON parses a Document AI shaped JSON answer from an LLM
func parseDocumentJSON(text string) (*Response, error) {
	text = strings.TrimSpace(text)

	// Remove opening markdown code blocks
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var doc extraction.RecognizedDocument
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	// Models sometimes answer with empty strings instead of leaving fields out
	entities := doc.Entities[:0]
	for _, entity := range doc.Entities {
		entity.Type = strings.TrimSpace(entity.Type)
		if entity.Type == "" {
			continue
		}
		if entity.MentionText != nil && strings.TrimSpace(*entity.MentionText) == "" {
			entity.MentionText = nil
		}
		if nv := entity.NormalizedValue; nv != nil && nv.Text != nil && strings.TrimSpace(*nv.Text) == "" {
			nv.Text = nil
		}
		entities = append(entities, entity)
	}
	doc.Entities = entities

	return &Response{Document: &doc}, nil
}
