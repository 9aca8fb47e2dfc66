package extraction

// Entity types recognised by the document processor
const (
	EntityExpiryDate   = "expiry_date"
	EntityDocumentName = "document_name"
	EntityDocumentType = "document_type"
)

// DateValue is a structured date as returned by the OCR service.
// Any of the components may be missing.
type DateValue struct {
	Year  *int `json:"year,omitempty"`
	Month *int `json:"month,omitempty"`
	Day   *int `json:"day,omitempty"`
}

// NormalizedValue is the canonicalized form of an entity, when the OCR
// service could structure it
type NormalizedValue struct {
	Text      *string    `json:"text,omitempty"`
	DateValue *DateValue `json:"dateValue,omitempty"`
}

// RecognizedEntity is one OCR-extracted field occurrence
type RecognizedEntity struct {
	Type            string           `json:"type,omitempty"`
	MentionText     *string          `json:"mentionText,omitempty"`
	Confidence      *float64         `json:"confidence,omitempty"`
	NormalizedValue *NormalizedValue `json:"normalizedValue,omitempty"`
}

// RecognizedDocument is the OCR output for one image
type RecognizedDocument struct {
	Text     *string            `json:"text,omitempty"`
	Entities []RecognizedEntity `json:"entities,omitempty"`
}

// firstEntity returns the first entity of the given type, or nil
func firstEntity(entities []RecognizedEntity, entityType string) *RecognizedEntity {
	for i := range entities {
		if entities[i].Type == entityType {
			return &entities[i]
		}
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
