package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwise/planwise-cli/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "planwise.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLitePlanSnapshotRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rec := model.NewPlanRecord()
	rec.Set("matchCap", model.PercentValue(4))
	rec.Set("autoEnrollment", model.BoolValue(true))

	require.NoError(t, s.SavePlanSnapshot(ctx, "c1", rec))

	snap, err := s.GetPlanSnapshot(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "c1", snap.ClientID)
	got, ok := snap.Record.Get("matchCap")
	require.True(t, ok)
	assert.InDelta(t, 4, got.Num, 1e-9)

	// Saving again replaces, not duplicates.
	rec.Set("matchCap", model.PercentValue(5))
	require.NoError(t, s.SavePlanSnapshot(ctx, "c1", rec))
	snap, err = s.GetPlanSnapshot(ctx, "c1")
	require.NoError(t, err)
	got, _ = snap.Record.Get("matchCap")
	assert.InDelta(t, 5, got.Num, 1e-9)

	require.NoError(t, s.DeletePlanSnapshot(ctx, "c1"))
	snap, err = s.GetPlanSnapshot(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSQLiteGetPlanSnapshotMissing(t *testing.T) {
	s := newTestSQLite(t)

	snap, err := s.GetPlanSnapshot(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSQLiteClientListCache(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	clients := []model.ClientSummary{
		{ClientID: "c1", ClientName: "Acme Corp", Region: "Midwest", State: "OH"},
		{ClientID: "c2", ClientName: "Globex", Region: "West Coast", State: "CA"},
	}
	require.NoError(t, s.SetClientList(ctx, clients, time.Hour))

	got, err := s.GetClientList(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Acme Corp", got[0].ClientName)

	require.NoError(t, s.InvalidateClientList(ctx))
	got, err = s.GetClientList(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteClientListExpiry(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	clients := []model.ClientSummary{{ClientID: "c1", ClientName: "Acme Corp"}}
	require.NoError(t, s.SetClientList(ctx, clients, -time.Second))

	got, err := s.GetClientList(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "expired cache must read as empty")
}

func TestSQLiteAuditLogMirror(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	got, err := s.GetAuditLog(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	entries := []model.AuditEntry{
		{ID: "a1", ClientID: "c1", FieldName: "Match Effective Rate", NewValue: "0.05", UpdatedBy: "advisor"},
		{ID: "a2", ClientID: "c2", FieldName: "Auto-Enrollment", NewValue: "true", UpdatedBy: "advisor"},
	}
	require.NoError(t, s.SaveAuditLog(ctx, entries))

	got, err = s.GetAuditLog(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ID)

	// A later save replaces the mirror wholesale.
	require.NoError(t, s.SaveAuditLog(ctx, entries[:1]))
	got, err = s.GetAuditLog(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLiteFailedEdits(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.RecordFailedEdit(ctx, FailedEdit{
		ClientID:  "c1",
		FieldID:   "matchCap",
		FieldName: "Match Effective Rate",
		Value:     "0.05",
		Reason:    "inline edit",
		Error:     "backend returned 500",
	}))
	require.NoError(t, s.RecordFailedEdit(ctx, FailedEdit{
		ClientID:  "c2",
		FieldID:   "vestingSchedule",
		FieldName: "Vesting Schedule",
		Value:     "Graded",
		Error:     "backend returned 503",
	}))

	count, err := s.CountFailedEdits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	edits, err := s.ListFailedEdits(ctx, FailedEditFilter{ClientID: "c1"})
	require.NoError(t, err)
	require.Len(t, edits, 1)
	assert.Equal(t, "matchCap", edits[0].FieldID)
	assert.Equal(t, "0.05", edits[0].Value)
	assert.False(t, edits[0].Resolved)
	assert.Nil(t, edits[0].ResolvedAt)

	require.NoError(t, s.ResolveFailedEdit(ctx, edits[0].ID))

	// Resolved edits leave the default listing but stay queryable.
	remaining, err := s.ListFailedEdits(ctx, FailedEditFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "c2", remaining[0].ClientID)

	all, err := s.ListFailedEdits(ctx, FailedEditFilter{IncludeResolved: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	count, err = s.CountFailedEdits(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Resolving twice is an error.
	err = s.ResolveFailedEdit(ctx, edits[0].ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
