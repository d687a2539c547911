// Package coordinator applies field edits optimistically: the in-memory
// record updates before the backend write completes, rolls back on a definite
// failure, and reconciles with an authoritative refetch after every commit.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/planwise/planwise-cli/internal/adapter"
	"github.com/planwise/planwise-cli/internal/model"
	"github.com/planwise/planwise-cli/pkg/planapi"
)

// EditState is the lifecycle state of the most recent edit for one
// (client, field) pair.
type EditState string

const (
	StateIdle       EditState = "idle"
	StatePending    EditState = "pending"
	StateCommitted  EditState = "committed"
	StateRolledBack EditState = "rolled_back"
)

// EventType classifies coordinator notifications.
type EventType string

const (
	// EventCommitted fires when a write lands and the cache holds the value.
	EventCommitted EventType = "committed"
	// EventRolledBack fires when a write fails and the snapshot is restored.
	EventRolledBack EventType = "rolled_back"
	// EventRefreshed fires when an authoritative refetch replaces a record.
	EventRefreshed EventType = "refreshed"
	// EventClientListInvalidated fires when a commit may have changed
	// client-list summaries.
	EventClientListInvalidated EventType = "client_list_invalidated"
)

// Event is a record-changed notification. Rendering layers subscribe instead
// of watching the cache.
type Event struct {
	Type     EventType
	ClientID string
	FieldID  string
	Err      error
}

// Backend is the slice of the plan API the coordinator needs. planapi.Client
// satisfies it.
type Backend interface {
	UpdateField(ctx context.Context, clientID, fieldName string, upd planapi.FieldUpdate) (*planapi.FieldUpdateResult, error)
	GetExtractions(ctx context.Context, clientID string) ([]model.Extraction, error)
}

// FailedEdit is a write that was rolled back, parked for operator review.
// Value is in backend units, exactly as the write was attempted.
type FailedEdit struct {
	ID        string
	ClientID  string
	FieldID   string
	FieldName string
	Value     string
	Reason    string
	Err       string
	FailedAt  time.Time
}

// FailureSink receives rolled-back edits. Optional.
type FailureSink interface {
	RecordFailedEdit(ctx context.Context, fe FailedEdit) error
}

// ErrFieldDisabled rejects edits to a field whose dependency is not
// currently satisfied.
var ErrFieldDisabled = eris.New("coordinator: field is disabled by its dependency")

// Coordinator owns the plan-record cache and serializes all mutation through
// ApplyEdit. Completions carry generation tokens, so out-of-order backend
// responses can never clobber newer state.
type Coordinator struct {
	reg       *model.FieldRegistry
	adapter   *adapter.Adapter
	backend   Backend
	cache     *recordCache
	sink      FailureSink
	updatedBy string

	stateMu sync.RWMutex
	states  map[editKey]EditState

	obsMu     sync.RWMutex
	observers []func(Event)
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithFailureSink parks rolled-back edits in the given sink.
func WithFailureSink(s FailureSink) Option {
	return func(c *Coordinator) { c.sink = s }
}

// New creates a Coordinator.
func New(reg *model.FieldRegistry, ad *adapter.Adapter, backend Backend, updatedBy string, opts ...Option) *Coordinator {
	c := &Coordinator{
		reg:       reg,
		adapter:   ad,
		backend:   backend,
		cache:     newRecordCache(),
		updatedBy: updatedBy,
		states:    make(map[editKey]EditState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers an observer for commit/rollback/refresh notifications.
// Observers run synchronously on the calling goroutine.
func (c *Coordinator) Subscribe(fn func(Event)) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers = append(c.observers, fn)
}

func (c *Coordinator) notify(ev Event) {
	c.obsMu.RLock()
	obs := make([]func(Event), len(c.observers))
	copy(obs, c.observers)
	c.obsMu.RUnlock()
	for _, fn := range obs {
		fn(ev)
	}
}

// Record returns a read-only snapshot of a client's cached record, or nil
// when the client has not been hydrated.
func (c *Coordinator) Record(clientID string) *model.PlanRecord {
	return c.cache.get(clientID)
}

// State returns the lifecycle state of the latest edit for the pair.
func (c *Coordinator) State(clientID, fieldID string) EditState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if s, ok := c.states[editKey{clientID, fieldID}]; ok {
		return s
	}
	return StateIdle
}

func (c *Coordinator) setState(clientID, fieldID string, s EditState) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.states[editKey{clientID, fieldID}] = s
}

// Hydrate fetches the authoritative record for a client and installs it in
// the cache. A hydration that races a newer edit or invalidation is
// discarded.
func (c *Coordinator) Hydrate(ctx context.Context, clientID string) (*model.PlanRecord, error) {
	gen := c.cache.clientGen(clientID)
	exts, err := c.backend.GetExtractions(ctx, clientID)
	if err != nil {
		return nil, eris.Wrapf(err, "coordinator: hydrate %s", clientID)
	}
	rec := c.adapter.ToUIRecord(exts)
	if !c.cache.replaceIfCurrent(clientID, gen, rec) {
		zap.L().Debug("discarding stale hydration", zap.String("client_id", clientID))
		return c.cache.get(clientID), nil
	}
	c.notify(Event{Type: EventRefreshed, ClientID: clientID})
	return rec.Clone(), nil
}

// Invalidate drops a client's cached record and fences out in-flight
// completions for it. Call when the client is no longer being viewed.
func (c *Coordinator) Invalidate(clientID string) {
	c.cache.invalidate(clientID)
}

// ApplyEdit validates, converts, and writes one field edit. The cache holds
// the new value from the moment validation passes; a definite backend failure
// restores the pre-edit value and returns the error. A completion superseded
// by a newer edit for the same pair is discarded silently.
func (c *Coordinator) ApplyEdit(ctx context.Context, clientID, fieldID, rawValue, reason string) error {
	// Local rejection happens before any state changes.
	if err := c.adapter.Validate(fieldID, rawValue); err != nil {
		return err
	}
	if !c.reg.IsEnabled(fieldID, c.cache.get(clientID)) {
		return eris.Wrapf(ErrFieldDisabled, "field %s", fieldID)
	}
	edit, err := c.adapter.ToBackendEdit(fieldID, rawValue)
	if err != nil {
		return err
	}
	optimistic, err := c.adapter.ParseUIValue(fieldID, rawValue)
	if err != nil {
		return err
	}

	gen, snapshot := c.cache.beginEdit(clientID, fieldID, optimistic)
	c.setState(clientID, fieldID, StatePending)

	_, writeErr := c.backend.UpdateField(ctx, clientID, edit.FieldName, planapi.FieldUpdate{
		NewValue:  edit.Value,
		Reason:    reason,
		UpdatedBy: c.updatedBy,
	})

	if !c.cache.isCurrentEdit(clientID, fieldID, gen) {
		// A newer edit owns the pair now; this outcome is moot either way.
		zap.L().Debug("discarding stale edit completion",
			zap.String("client_id", clientID),
			zap.String("field_id", fieldID),
			zap.Uint64("generation", gen),
			zap.Bool("failed", writeErr != nil),
		)
		return nil
	}

	if writeErr != nil {
		if c.cache.rollback(clientID, fieldID, gen, snapshot) {
			c.setState(clientID, fieldID, StateRolledBack)
			c.notify(Event{Type: EventRolledBack, ClientID: clientID, FieldID: fieldID, Err: writeErr})
			c.parkFailedEdit(ctx, clientID, fieldID, edit, reason, writeErr)
		}
		return eris.Wrapf(writeErr, "coordinator: edit %s/%s", clientID, fieldID)
	}

	c.setState(clientID, fieldID, StateCommitted)
	c.notify(Event{Type: EventCommitted, ClientID: clientID, FieldID: fieldID})
	c.notify(Event{Type: EventClientListInvalidated, ClientID: clientID})

	// Reconcile with the server's view. This also covers the ambiguous case
	// where an earlier response was lost after the write landed. A refetch
	// failure leaves the optimistic value in place and is only a warning.
	if _, err := c.Hydrate(ctx, clientID); err != nil {
		zap.L().Warn("post-edit refetch failed, cache keeps optimistic value",
			zap.String("client_id", clientID),
			zap.Error(err),
		)
	}
	return nil
}

func (c *Coordinator) parkFailedEdit(ctx context.Context, clientID, fieldID string, edit adapter.BackendEdit, reason string, writeErr error) {
	if c.sink == nil {
		return
	}
	fe := FailedEdit{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		FieldID:   fieldID,
		FieldName: edit.FieldName,
		Value:     edit.Value,
		Reason:    reason,
		Err:       writeErr.Error(),
		FailedAt:  time.Now().UTC(),
	}
	if err := c.sink.RecordFailedEdit(ctx, fe); err != nil {
		zap.L().Warn("failed to park rolled-back edit",
			zap.String("client_id", clientID),
			zap.String("field_id", fieldID),
			zap.Error(err),
		)
	}
}

// BulkResult reports a bulk edit's per-client outcomes.
type BulkResult struct {
	Succeeded []string
	Failed    map[string]error
}

// BulkEdit applies the same (field, value) edit across clients as independent
// single-field edits, each with its own lifecycle. Partial failure is
// expected; per-client errors are collected, never merged into one
// all-or-nothing rollback.
func (c *Coordinator) BulkEdit(ctx context.Context, clientIDs []string, fieldID, rawValue, reason string, concurrency int) BulkResult {
	if concurrency <= 0 {
		concurrency = 4
	}

	var mu sync.Mutex
	res := BulkResult{Failed: make(map[string]error)}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, clientID := range clientIDs {
		g.Go(func() error {
			err := c.ApplyEdit(ctx, clientID, fieldID, rawValue, reason)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[clientID] = err
			} else {
				res.Succeeded = append(res.Succeeded, clientID)
			}
			return nil
		})
	}
	_ = g.Wait()
	return res
}
