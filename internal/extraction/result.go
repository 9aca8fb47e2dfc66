package extraction

import "cloud.google.com/go/civil"

// ScanResult is the interpretation of one OCR response. Every field is
// optional; missing input data leaves the matching field nil.
type ScanResult struct {
	ExtractedName    *string     `json:"extracted_name,omitempty"`
	ExpiryDate       *civil.Date `json:"expiry_date,omitempty"`
	Confidence       *float64    `json:"confidence,omitempty"` // from the expiry_date entity
	FullText         *string     `json:"full_text,omitempty"`
	RawResponse      *string     `json:"raw_response,omitempty"`
	DetectedCategory *Category   `json:"detected_category,omitempty"`
}

// Assemble builds a ScanResult from a recognized document. doc may be nil.
// rawResponse is the already serialized transport response, if any.
func Assemble(doc *RecognizedDocument, rawResponse *string) ScanResult {
	var (
		entities []RecognizedEntity
		fullText *string
	)
	if doc != nil {
		entities = doc.Entities
		fullText = doc.Text
	}

	result := ScanResult{
		RawResponse: rawResponse,
	}

	expiryEntity := firstEntity(entities, EntityExpiryDate)
	if date, ok := ExtractDate(expiryEntity); ok {
		result.ExpiryDate = &date
	}
	if expiryEntity != nil && expiryEntity.Confidence != nil {
		result.Confidence = ptr(*expiryEntity.Confidence)
	}

	result.ExtractedName = ExtractName(firstEntity(entities, EntityDocumentName))

	if fullText != nil {
		result.FullText = ptr(*fullText)
	}
	if category, ok := ClassifyCategory(fullText); ok {
		result.DetectedCategory = &category
	}

	return result
}

// ExtractName prefers the normalized text over the raw mention
func ExtractName(entity *RecognizedEntity) *string {
	if entity == nil {
		return nil
	}
	if entity.NormalizedValue != nil && entity.NormalizedValue.Text != nil {
		return ptr(*entity.NormalizedValue.Text)
	}
	if entity.MentionText != nil {
		return ptr(*entity.MentionText)
	}
	return nil
}
