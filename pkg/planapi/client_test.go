package planapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwise/planwise-cli/internal/resilience"
)

func noRetry() Option {
	return WithRetryConfig(resilience.RetryConfig{MaxAttempts: 1})
}

func fastRetry(attempts int) Option {
	return WithRetryConfig(resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})
}

func TestListClients(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/clients", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"client_id": "c1", "client_name": "Acme Corp", "industry": "Manufacturing", "region": "Midwest", "state": "OH", "employee_count": 1200}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, noRetry())
	clients, err := c.ListClients(context.Background())
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "Acme Corp", clients[0].ClientName)
	assert.Equal(t, 1200, clients[0].EmployeeCount)
}

func TestGetExtractions(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/clients/c1/extractions", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"field_name": "Match Effective Rate", "field_category": "Contributions", "value": 0.04, "confidence_score": 0.92, "status": "verified"},
			{"field_name": "Auto-Enrollment", "field_category": "Auto Features", "value": "Yes", "confidence_score": 0.7, "status": "review"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, noRetry())
	exts, err := c.GetExtractions(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, exts, 2)
	assert.Equal(t, "Match Effective Rate", exts[0].FieldName)
	assert.InDelta(t, 0.04, exts[0].Value.(float64), 1e-9)
	assert.Equal(t, "review", exts[1].Status)

	_, err = c.GetExtractions(context.Background(), "")
	require.Error(t, err)
}

func TestUpdateField(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		// Backend field names carry spaces; the path must be escaped.
		assert.Equal(t, "/api/v1/clients/c1/fields/Auto-Enrollment%20Rate", r.URL.EscapedPath())

		var body FieldUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "0.06", body.NewValue)
		assert.Equal(t, "advisor@planwise", body.UpdatedBy)

		_, _ = w.Write([]byte(`{"client_id": "c1", "field_name": "auto_enrollment_rate", "old_value": "0.03", "new_value": "0.06", "updated_by": "advisor@planwise", "audit_id": "a1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, noRetry())
	res, err := c.UpdateField(context.Background(), "c1", "Auto-Enrollment Rate", FieldUpdate{
		NewValue:  "0.06",
		Reason:    "inline edit",
		UpdatedBy: "advisor@planwise",
	})
	require.NoError(t, err)
	assert.Equal(t, "0.03", res.OldValue)
	assert.Equal(t, "a1", res.AuditID)
}

func TestUpdateFieldValidationRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail": "auto_enrollment_rate must not exceed 0.2"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, noRetry())
	_, err := c.UpdateField(context.Background(), "c1", "Auto-Enrollment Rate", FieldUpdate{NewValue: "0.9", UpdatedBy: "x"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Detail, "must not exceed")
}

func TestTransientStatusIsRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastRetry(3))
	_, err := c.ListClients(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPermanentStatusIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "client not found"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastRetry(3))
	_, err := c.GetExtractions(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetFieldHistory(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/clients/c1/fields/Match%20Effective%20Rate/history", r.URL.EscapedPath())
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{
			"client_id": "c1",
			"field_name": "Match Effective Rate",
			"current_value": "0.04",
			"changes": [
				{"audit_id": "a2", "timestamp": "2026-08-27T10:00:00", "old_value": "0.03", "new_value": "0.04", "updated_by": "advisor", "reason": "manual_update", "notes": null}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, noRetry())
	hist, err := c.GetFieldHistory(context.Background(), "c1", "Match Effective Rate", 10)
	require.NoError(t, err)
	require.Len(t, hist.Changes, 1)
	require.NotNil(t, hist.Changes[0].OldValue)
	assert.Equal(t, "0.03", *hist.Changes[0].OldValue)
	assert.Nil(t, hist.Changes[0].Notes)
}

func TestCreateClient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body CreateClientRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Midwest", body.Region)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"client_id": "c9", "client_name": "Acme", "industry": "Manufacturing", "region": "Midwest", "state": "OH", "employee_count": 0}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, noRetry())
	created, err := c.CreateClient(context.Background(), CreateClientRequest{
		Name: "Acme", Industry: "Manufacturing", Region: "Midwest", State: "OH",
	})
	require.NoError(t, err)
	assert.Equal(t, "c9", created.ClientID)

	_, err = c.CreateClient(context.Background(), CreateClientRequest{})
	require.Error(t, err)
}

func TestGetAuditLog(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/audit-log", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"audit_id": "a1", "client_id": "c1", "field_name": "match_effective_rate", "timestamp": "2026-08-27T10:00:00", "old_value": null, "new_value": "0.04", "updated_by": "advisor", "reason": "manual_update", "notes": null}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, noRetry())
	entries, err := c.GetAuditLog(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].OldValue)
	assert.Equal(t, "0.04", entries[0].NewValue)
}
