// Package planapi provides a client for the plan-design extraction backend's
// REST API.
package planapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/planwise/planwise-cli/internal/model"
	"github.com/planwise/planwise-cli/internal/resilience"
)

// Client defines the backend operations used by the plan admin tool.
type Client interface {
	// ListClients returns all client organizations.
	ListClients(ctx context.Context) ([]model.ClientSummary, error)
	// GetExtractions returns the extracted plan fields for one client.
	GetExtractions(ctx context.Context, clientID string) ([]model.Extraction, error)
	// UpdateField writes one field edit. FieldName is in the backend's
	// namespace and the value in backend units; the adapter converts both.
	UpdateField(ctx context.Context, clientID, fieldName string, upd FieldUpdate) (*FieldUpdateResult, error)
	// GetFieldHistory returns the audit trail for one (client, field) pair.
	GetFieldHistory(ctx context.Context, clientID, fieldName string, limit int) (*model.FieldHistory, error)
	// GetAuditLog returns the global change log.
	GetAuditLog(ctx context.Context) ([]model.AuditEntry, error)
	// CreateClient registers a new client organization.
	CreateClient(ctx context.Context, req CreateClientRequest) (*model.ClientSummary, error)
}

// FieldUpdate is the PATCH body for a single field write.
type FieldUpdate struct {
	NewValue  string `json:"new_value"`
	Reason    string `json:"reason,omitempty"`
	Notes     string `json:"notes,omitempty"`
	UpdatedBy string `json:"updated_by"`
}

// FieldUpdateResult is the backend's acknowledgment of a field write.
type FieldUpdateResult struct {
	ClientID  string `json:"client_id"`
	FieldName string `json:"field_name"`
	OldValue  string `json:"old_value"`
	NewValue  string `json:"new_value"`
	UpdatedBy string `json:"updated_by"`
	AuditID   string `json:"audit_id"`
}

// CreateClientRequest is the POST body for client creation.
type CreateClientRequest struct {
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Region   string `json:"region"`
	State    string `json:"state,omitempty"`
}

// APIError is a definite non-2xx response from the backend. The coordinator's
// rollback path depends on distinguishing this from transport ambiguity.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("planapi: backend returned %d: %s", e.StatusCode, e.Detail)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithRetryConfig overrides the default retry behavior.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

// WithAuthToken sets a bearer token for all requests.
func WithAuthToken(token string) Option {
	return func(c *httpClient) { c.token = token }
}

type httpClient struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a backend client.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		retry:   resilience.DefaultRetryConfig(),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do issues one request with rate limiting and retries on transient
// failures. The request is rebuilt per attempt so bodies replay cleanly.
// A definite non-2xx response returns an APIError; retryable statuses are
// wrapped as transient first.
func (c *httpClient) do(ctx context.Context, method, path string, reqBody, out any) error {
	var payload []byte
	if reqBody != nil {
		var err error
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return eris.Wrap(err, "planapi: marshal request")
		}
	}

	body, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
		if err != nil {
			return nil, eris.Wrap(err, "planapi: create request")
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "planapi: request failed")
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "planapi: read response body")
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(respBody)}
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
			}
			return nil, apiErr
		}

		return respBody, nil
	})
	if err != nil {
		return err
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return eris.Wrap(err, "planapi: unmarshal response")
		}
	}
	return nil
}

// errorDetail pulls a machine-readable message out of an error body, falling
// back to the raw text.
func errorDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return string(body)
}

func (c *httpClient) ListClients(ctx context.Context) ([]model.ClientSummary, error) {
	var out []model.ClientSummary
	if err := c.do(ctx, http.MethodGet, "/api/v1/clients", nil, &out); err != nil {
		return nil, eris.Wrap(err, "planapi: list clients")
	}
	return out, nil
}

func (c *httpClient) GetExtractions(ctx context.Context, clientID string) ([]model.Extraction, error) {
	if clientID == "" {
		return nil, eris.New("planapi: client id is required")
	}
	var out []model.Extraction
	path := fmt.Sprintf("/api/v1/clients/%s/extractions", url.PathEscape(clientID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, eris.Wrapf(err, "planapi: get extractions for %s", clientID)
	}
	return out, nil
}

func (c *httpClient) UpdateField(ctx context.Context, clientID, fieldName string, upd FieldUpdate) (*FieldUpdateResult, error) {
	if clientID == "" {
		return nil, eris.New("planapi: client id is required")
	}
	if fieldName == "" {
		return nil, eris.New("planapi: field name is required")
	}
	var out FieldUpdateResult
	path := fmt.Sprintf("/api/v1/clients/%s/fields/%s", url.PathEscape(clientID), url.PathEscape(fieldName))
	if err := c.do(ctx, http.MethodPatch, path, upd, &out); err != nil {
		return nil, eris.Wrapf(err, "planapi: update field %s for %s", fieldName, clientID)
	}
	return &out, nil
}

func (c *httpClient) GetFieldHistory(ctx context.Context, clientID, fieldName string, limit int) (*model.FieldHistory, error) {
	if clientID == "" {
		return nil, eris.New("planapi: client id is required")
	}
	var out model.FieldHistory
	path := fmt.Sprintf("/api/v1/clients/%s/fields/%s/history", url.PathEscape(clientID), url.PathEscape(fieldName))
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, eris.Wrapf(err, "planapi: get history for %s/%s", clientID, fieldName)
	}
	return &out, nil
}

func (c *httpClient) GetAuditLog(ctx context.Context) ([]model.AuditEntry, error) {
	var out []model.AuditEntry
	if err := c.do(ctx, http.MethodGet, "/api/v1/audit-log", nil, &out); err != nil {
		return nil, eris.Wrap(err, "planapi: get audit log")
	}
	return out, nil
}

func (c *httpClient) CreateClient(ctx context.Context, req CreateClientRequest) (*model.ClientSummary, error) {
	if req.Name == "" {
		return nil, eris.New("planapi: client name is required")
	}
	var out model.ClientSummary
	if err := c.do(ctx, http.MethodPost, "/api/v1/clients", req, &out); err != nil {
		return nil, eris.Wrapf(err, "planapi: create client %s", req.Name)
	}
	return &out, nil
}
