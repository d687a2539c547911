// Package store persists local working state for the plan admin tool: plan
// record snapshots for offline reads, a TTL'd client-list cache, a mirror of
// the backend's audit log, and the failed-edit queue that holds rolled-back
// writes for operator review.
package store

import (
	"context"
	"time"

	"github.com/planwise/planwise-cli/internal/model"
)

// FailedEdit is a rolled-back field write parked for review. Value is in
// backend units, exactly as the write was attempted.
type FailedEdit struct {
	ID         string     `json:"id"`
	ClientID   string     `json:"client_id"`
	FieldID    string     `json:"field_id"`
	FieldName  string     `json:"field_name"`
	Value      string     `json:"value"`
	Reason     string     `json:"reason,omitempty"`
	Error      string     `json:"error"`
	Resolved   bool       `json:"resolved"`
	FailedAt   time.Time  `json:"failed_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// FailedEditFilter specifies criteria for listing failed edits.
type FailedEditFilter struct {
	ClientID        string `json:"client_id,omitempty"`
	IncludeResolved bool   `json:"include_resolved,omitempty"`
	Limit           int    `json:"limit,omitempty"`
}

// PlanSnapshot is a persisted copy of one client's plan record.
type PlanSnapshot struct {
	ClientID string            `json:"client_id"`
	Record   *model.PlanRecord `json:"record"`
	SavedAt  time.Time         `json:"saved_at"`
}

// Store defines the persistence interface for the admin tool's local state.
type Store interface {
	// Plan snapshots
	SavePlanSnapshot(ctx context.Context, clientID string, rec *model.PlanRecord) error
	GetPlanSnapshot(ctx context.Context, clientID string) (*PlanSnapshot, error)
	DeletePlanSnapshot(ctx context.Context, clientID string) error

	// Client-list cache
	SetClientList(ctx context.Context, clients []model.ClientSummary, ttl time.Duration) error
	GetClientList(ctx context.Context) ([]model.ClientSummary, error)
	InvalidateClientList(ctx context.Context) error

	// Audit-log mirror, for offline display
	SaveAuditLog(ctx context.Context, entries []model.AuditEntry) error
	GetAuditLog(ctx context.Context) ([]model.AuditEntry, error)

	// Failed edits
	RecordFailedEdit(ctx context.Context, fe FailedEdit) error
	ListFailedEdits(ctx context.Context, filter FailedEditFilter) ([]FailedEdit, error)
	ResolveFailedEdit(ctx context.Context, id string) error
	CountFailedEdits(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
