package model

// AuditEntry is one backend-owned change record for a single field. Read-only
// on this side; the backend appends entries as writes land.
type AuditEntry struct {
	ID              string   `json:"audit_id"`
	ClientID        string   `json:"client_id,omitempty"`
	FieldName       string   `json:"field_name,omitempty"`
	Timestamp       string   `json:"timestamp"`
	OldValue        *string  `json:"old_value"`
	NewValue        string   `json:"new_value"`
	UpdatedBy       string   `json:"updated_by"`
	Reason          string   `json:"reason"`
	Notes           *string  `json:"notes"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
}

// FieldHistory is the backend's history response for one (client, field).
type FieldHistory struct {
	ClientID     string       `json:"client_id"`
	FieldName    string       `json:"field_name"`
	CurrentValue *string      `json:"current_value"`
	Changes      []AuditEntry `json:"changes"`
}
