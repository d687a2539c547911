package model

// Extraction is one backend-reported value for a plan field, in the backend's
// namespace and units (decimal fractions for percents). Value is untyped on
// the wire; the adapter coerces it.
type Extraction struct {
	FieldName       string  `json:"field_name"`
	FieldCategory   string  `json:"field_category"`
	Value           any     `json:"value"`
	ConfidenceScore float64 `json:"confidence_score"`
	Status          string  `json:"status"`
}

// Extraction review statuses reported by the backend.
const (
	ExtractionVerified = "verified"
	ExtractionReview   = "review"
)
