package coordinator

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwise/planwise-cli/internal/adapter"
	"github.com/planwise/planwise-cli/internal/model"
	"github.com/planwise/planwise-cli/internal/registry"
	"github.com/planwise/planwise-cli/pkg/planapi"
)

// fakeBackend simulates the plan backend: successful writes land in a value
// map that subsequent GetExtractions calls reflect, like the real service.
// Hooks let tests block or fail individual calls to drive interleavings.
type fakeBackend struct {
	mu         sync.Mutex
	values     map[string]map[string]any
	updateHook func(clientID, fieldName string, upd planapi.FieldUpdate) error
	extHook    func(clientID string)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{values: make(map[string]map[string]any)}
}

func (f *fakeBackend) seed(clientID, fieldName string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.values[clientID] == nil {
		f.values[clientID] = make(map[string]any)
	}
	f.values[clientID][fieldName] = value
}

func (f *fakeBackend) UpdateField(ctx context.Context, clientID, fieldName string, upd planapi.FieldUpdate) (*planapi.FieldUpdateResult, error) {
	if f.updateHook != nil {
		if err := f.updateHook(clientID, fieldName, upd); err != nil {
			return nil, err
		}
	}
	var value any = upd.NewValue
	if n, err := strconv.ParseFloat(upd.NewValue, 64); err == nil {
		value = n
	}
	f.seed(clientID, fieldName, value)
	return &planapi.FieldUpdateResult{ClientID: clientID, FieldName: fieldName, NewValue: upd.NewValue}, nil
}

func (f *fakeBackend) GetExtractions(ctx context.Context, clientID string) ([]model.Extraction, error) {
	if f.extHook != nil {
		f.extHook(clientID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Extraction
	for name, value := range f.values[clientID] {
		out = append(out, model.Extraction{FieldName: name, Value: value, Status: model.ExtractionVerified})
	}
	return out, nil
}

func newTestCoordinator(t *testing.T, backend Backend, opts ...Option) *Coordinator {
	t.Helper()
	reg, err := registry.Builtin()
	require.NoError(t, err)
	return New(reg, adapter.New(reg), backend, "advisor@planwise", opts...)
}

func mustPercent(t *testing.T, rec *model.PlanRecord, fieldID string) float64 {
	t.Helper()
	require.NotNil(t, rec)
	v, ok := rec.Get(fieldID)
	require.True(t, ok, "field %s missing", fieldID)
	return v.Num
}

func TestApplyEditCommit(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.seed("c1", "Match Effective Rate", 0.04)
	co := newTestCoordinator(t, backend)

	_, err := co.Hydrate(context.Background(), "c1")
	require.NoError(t, err)
	assert.InDelta(t, 4, mustPercent(t, co.Record("c1"), "matchCap"), 1e-9)

	var events []EventType
	co.Subscribe(func(ev Event) { events = append(events, ev.Type) })

	require.NoError(t, co.ApplyEdit(context.Background(), "c1", "matchCap", "5", "inline edit"))

	assert.InDelta(t, 5, mustPercent(t, co.Record("c1"), "matchCap"), 1e-9)
	assert.Equal(t, StateCommitted, co.State("c1", "matchCap"))
	assert.Contains(t, events, EventCommitted)
	assert.Contains(t, events, EventClientListInvalidated)
	assert.Contains(t, events, EventRefreshed)

	// The backend received the decimal-fraction form.
	backend.mu.Lock()
	assert.InDelta(t, 0.05, backend.values["c1"]["Match Effective Rate"].(float64), 1e-9)
	backend.mu.Unlock()
}

func TestApplyEditOptimisticVisibility(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.seed("c1", "Match Effective Rate", 0.04)

	inFlight := make(chan struct{})
	release := make(chan struct{})
	backend.updateHook = func(_, _ string, _ planapi.FieldUpdate) error {
		close(inFlight)
		<-release
		return nil
	}

	co := newTestCoordinator(t, backend)
	_, err := co.Hydrate(context.Background(), "c1")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- co.ApplyEdit(context.Background(), "c1", "matchCap", "5", "")
	}()

	// Readers see the new value before the network round-trip completes.
	<-inFlight
	assert.InDelta(t, 5, mustPercent(t, co.Record("c1"), "matchCap"), 1e-9)
	assert.Equal(t, StatePending, co.State("c1", "matchCap"))

	close(release)
	require.NoError(t, <-done)
}

func TestApplyEditRollback(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.seed("c1", "Match Effective Rate", 0.04)
	backend.updateHook = func(_, _ string, _ planapi.FieldUpdate) error {
		return &planapi.APIError{StatusCode: 422, Detail: "rejected"}
	}

	var sink recordingSink
	co := newTestCoordinator(t, backend, WithFailureSink(&sink))
	_, err := co.Hydrate(context.Background(), "c1")
	require.NoError(t, err)

	var rolledBack []Event
	co.Subscribe(func(ev Event) {
		if ev.Type == EventRolledBack {
			rolledBack = append(rolledBack, ev)
		}
	})

	err = co.ApplyEdit(context.Background(), "c1", "matchCap", "5", "inline edit")
	require.Error(t, err)

	var apiErr *planapi.APIError
	assert.ErrorAs(t, err, &apiErr)

	// Exact pre-edit value is back.
	assert.InDelta(t, 4, mustPercent(t, co.Record("c1"), "matchCap"), 1e-9)
	assert.Equal(t, StateRolledBack, co.State("c1", "matchCap"))
	require.Len(t, rolledBack, 1)
	assert.Error(t, rolledBack[0].Err)

	// The rolled-back edit was parked for review, in backend units.
	require.Len(t, sink.edits, 1)
	assert.Equal(t, "Match Effective Rate", sink.edits[0].FieldName)
	assert.Equal(t, "0.05", sink.edits[0].Value)
	assert.Contains(t, sink.edits[0].Err, "rejected")
}

type recordingSink struct {
	mu    sync.Mutex
	edits []FailedEdit
}

func (s *recordingSink) RecordFailedEdit(_ context.Context, fe FailedEdit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits = append(s.edits, fe)
	return nil
}

// A stale failure must not clobber the outcome of a newer edit to the same
// field: edit A resolves (failed) after edit B has already committed.
func TestOutOfOrderCompletionDiscarded(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.seed("c1", "Match Effective Rate", 0.04)

	aInFlight := make(chan struct{})
	releaseA := make(chan struct{})
	backend.updateHook = func(_, _ string, upd planapi.FieldUpdate) error {
		if upd.NewValue == "0.05" { // edit A
			close(aInFlight)
			<-releaseA
			return &planapi.APIError{StatusCode: 500, Detail: "late failure"}
		}
		return nil
	}

	co := newTestCoordinator(t, backend)
	_, err := co.Hydrate(context.Background(), "c1")
	require.NoError(t, err)

	aDone := make(chan error, 1)
	go func() {
		aDone <- co.ApplyEdit(context.Background(), "c1", "matchCap", "5", "")
	}()
	<-aInFlight

	// Edit B supersedes A and commits while A is still in flight.
	require.NoError(t, co.ApplyEdit(context.Background(), "c1", "matchCap", "6", ""))
	assert.InDelta(t, 6, mustPercent(t, co.Record("c1"), "matchCap"), 1e-9)

	// A's failure arrives late and is discarded, not treated as a failure.
	close(releaseA)
	require.NoError(t, <-aDone)
	assert.InDelta(t, 6, mustPercent(t, co.Record("c1"), "matchCap"), 1e-9)
	assert.Equal(t, StateCommitted, co.State("c1", "matchCap"))
}

func TestApplyEditLocalRejection(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.seed("c1", "Auto-Enrollment", false)
	backend.seed("c1", "Auto-Enrollment Rate", 0.03)
	backend.updateHook = func(_, _ string, _ planapi.FieldUpdate) error {
		t.Fatal("backend must not be called for locally rejected edits")
		return nil
	}

	co := newTestCoordinator(t, backend)

	t.Run("validation failure leaves state idle", func(t *testing.T) {
		err := co.ApplyEdit(context.Background(), "c1", "autoEnrollmentRate", "25", "")
		require.Error(t, err)
		assert.True(t, adapter.IsValidation(err))
		assert.Equal(t, StateIdle, co.State("c1", "autoEnrollmentRate"))
	})

	t.Run("unmapped field surfaces a mapping error", func(t *testing.T) {
		err := co.ApplyEdit(context.Background(), "c1", "profitSharing", "x", "")
		require.Error(t, err)
		assert.True(t, adapter.IsMapping(err))
	})

	t.Run("dependency-disabled field is rejected", func(t *testing.T) {
		_, err := co.Hydrate(context.Background(), "c1")
		require.NoError(t, err)

		err = co.ApplyEdit(context.Background(), "c1", "autoEnrollmentRate", "6", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFieldDisabled)
	})
}

func TestHydrateInvalidateRace(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.seed("c1", "Match Effective Rate", 0.04)

	fetchStarted := make(chan struct{})
	releaseFetch := make(chan struct{})
	var once sync.Once
	backend.extHook = func(string) {
		once.Do(func() {
			close(fetchStarted)
			<-releaseFetch
		})
	}

	co := newTestCoordinator(t, backend)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = co.Hydrate(context.Background(), "c1")
	}()

	// Switching away mid-fetch: the late response must not repopulate the
	// cache for a client no longer being viewed.
	<-fetchStarted
	co.Invalidate("c1")
	close(releaseFetch)
	<-done

	assert.Nil(t, co.Record("c1"))
}

func TestBulkEditPartialFailure(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	for _, id := range []string{"c1", "c2", "c3"} {
		backend.seed(id, "Match Effective Rate", 0.03)
	}
	backend.updateHook = func(clientID, _ string, _ planapi.FieldUpdate) error {
		if clientID == "c2" {
			return &planapi.APIError{StatusCode: 500, Detail: "write failed"}
		}
		return nil
	}

	co := newTestCoordinator(t, backend)
	for _, id := range []string{"c1", "c2", "c3"} {
		_, err := co.Hydrate(context.Background(), id)
		require.NoError(t, err)
	}

	res := co.BulkEdit(context.Background(), []string{"c1", "c2", "c3"}, "matchCap", "5", "bulk update", 2)

	assert.ElementsMatch(t, []string{"c1", "c3"}, res.Succeeded)
	require.Contains(t, res.Failed, "c2")

	// Failed client rolled back, successes committed.
	assert.InDelta(t, 3, mustPercent(t, co.Record("c2"), "matchCap"), 1e-9)
	assert.InDelta(t, 5, mustPercent(t, co.Record("c1"), "matchCap"), 1e-9)
	assert.InDelta(t, 5, mustPercent(t, co.Record("c3"), "matchCap"), 1e-9)
}

func TestRefetchFailureKeepsOptimisticValue(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.seed("c1", "Match Effective Rate", 0.04)

	var failRefetch atomic.Bool
	wrapped := &flakyRefetchBackend{inner: backend, failing: &failRefetch}

	co := newTestCoordinator(t, wrapped)
	_, err := co.Hydrate(context.Background(), "c1")
	require.NoError(t, err)
	failRefetch.Store(true)

	// Write succeeds, refetch fails: edit is committed, optimistic value stays.
	require.NoError(t, co.ApplyEdit(context.Background(), "c1", "matchCap", "5", ""))
	assert.InDelta(t, 5, mustPercent(t, co.Record("c1"), "matchCap"), 1e-9)
	assert.Equal(t, StateCommitted, co.State("c1", "matchCap"))
}

type flakyRefetchBackend struct {
	inner   *fakeBackend
	failing *atomic.Bool
}

func (b *flakyRefetchBackend) UpdateField(ctx context.Context, clientID, fieldName string, upd planapi.FieldUpdate) (*planapi.FieldUpdateResult, error) {
	return b.inner.UpdateField(ctx, clientID, fieldName, upd)
}

func (b *flakyRefetchBackend) GetExtractions(ctx context.Context, clientID string) ([]model.Extraction, error) {
	if b.failing.Load() {
		return nil, eris.New("backend unavailable")
	}
	return b.inner.GetExtractions(ctx, clientID)
}

func TestConcurrentEditsDifferentFields(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.seed("c1", "Match Effective Rate", 0.04)
	backend.seed("c1", "Eligibility", 21.0)
	co := newTestCoordinator(t, backend)
	_, err := co.Hydrate(context.Background(), "c1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = co.ApplyEdit(context.Background(), "c1", "matchCap", "5", "")
	}()
	go func() {
		defer wg.Done()
		errs[1] = co.ApplyEdit(context.Background(), "c1", "minAge", "18", "")
	}()

	waitDone := make(chan struct{})
	go func() { wg.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-time.After(5 * time.Second):
		t.Fatal("concurrent edits deadlocked")
	}

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	rec := co.Record("c1")
	assert.InDelta(t, 5, mustPercent(t, rec, "matchCap"), 1e-9)
	v, _ := rec.Get("minAge")
	assert.InDelta(t, 18, v.Num, 1e-9)
}
