package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/planwise/planwise-cli/internal/adapter"
	"github.com/planwise/planwise-cli/internal/coordinator"
	"github.com/planwise/planwise-cli/internal/model"
	"github.com/planwise/planwise-cli/internal/registry"
	"github.com/planwise/planwise-cli/internal/resilience"
	"github.com/planwise/planwise-cli/internal/store"
	"github.com/planwise/planwise-cli/pkg/planapi"
)

// appEnv bundles the wired subsystems a command needs. Callers should defer
// env.Close().
type appEnv struct {
	Store    store.Store
	Backend  planapi.Client
	Registry *model.FieldRegistry
	Adapter  *adapter.Adapter
	Coord    *coordinator.Coordinator
}

func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func (e *appEnv) clientListTTL() time.Duration {
	return time.Duration(cfg.Edit.ClientListTTLMin) * time.Minute
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "planwise.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initBackend() planapi.Client {
	opts := []planapi.Option{
		planapi.WithRateLimit(cfg.Backend.RateLimit),
	}
	if cfg.Backend.AuthToken != "" {
		opts = append(opts, planapi.WithAuthToken(cfg.Backend.AuthToken))
	}
	if cfg.Backend.MaxAttempts > 0 {
		retry := resilience.DefaultRetryConfig()
		retry.MaxAttempts = cfg.Backend.MaxAttempts
		opts = append(opts, planapi.WithRetryConfig(retry))
	}
	return planapi.NewClient(cfg.Backend.BaseURL, opts...)
}

// storeSink parks rolled-back edits in the local store for later review.
type storeSink struct {
	st store.Store
}

func (s *storeSink) RecordFailedEdit(ctx context.Context, fe coordinator.FailedEdit) error {
	return s.st.RecordFailedEdit(ctx, store.FailedEdit{
		ID:        fe.ID,
		ClientID:  fe.ClientID,
		FieldID:   fe.FieldID,
		FieldName: fe.FieldName,
		Value:     fe.Value,
		Reason:    fe.Reason,
		Error:     fe.Err,
		FailedAt:  fe.FailedAt,
	})
}

// initEnv sets up the store, the backend client, the field registry, and the
// edit coordinator.
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	reg, err := registry.Load(cfg.Registry.FieldsFile)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if cfg.Registry.FieldsFile != "" {
		zap.L().Info("field catalog loaded from file", zap.String("path", cfg.Registry.FieldsFile))
	}

	backend := initBackend()
	ad := adapter.New(reg)
	coord := coordinator.New(reg, ad, backend, cfg.Edit.UpdatedBy,
		coordinator.WithFailureSink(&storeSink{st: st}),
	)

	env := &appEnv{
		Store:    st,
		Backend:  backend,
		Registry: reg,
		Adapter:  ad,
		Coord:    coord,
	}

	// Keep the persistent caches in step with what the coordinator learns.
	coord.Subscribe(func(ev coordinator.Event) {
		switch ev.Type {
		case coordinator.EventRefreshed:
			if rec := coord.Record(ev.ClientID); rec != nil {
				if err := st.SavePlanSnapshot(ctx, ev.ClientID, rec); err != nil {
					zap.L().Warn("snapshot save failed", zap.String("client_id", ev.ClientID), zap.Error(err))
				}
			}
		case coordinator.EventClientListInvalidated:
			if err := st.InvalidateClientList(ctx); err != nil {
				zap.L().Warn("client list invalidation failed", zap.Error(err))
			}
		}
	})

	return env, nil
}

// listClients returns the client list, served from the store cache when fresh.
func (e *appEnv) listClients(ctx context.Context) ([]model.ClientSummary, error) {
	cached, err := e.Store.GetClientList(ctx)
	if err != nil {
		zap.L().Warn("client list cache read failed", zap.Error(err))
	}
	if len(cached) > 0 {
		return cached, nil
	}

	clients, err := e.Backend.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.Store.SetClientList(ctx, clients, e.clientListTTL()); err != nil {
		zap.L().Warn("client list cache write failed", zap.Error(err))
	}
	return clients, nil
}

// hydrate loads a client's record through the coordinator and falls back to
// the last persisted snapshot when the backend is unreachable.
func (e *appEnv) hydrate(ctx context.Context, clientID string) (*model.PlanRecord, error) {
	rec, err := e.Coord.Hydrate(ctx, clientID)
	if err == nil {
		return rec, nil
	}

	snap, snapErr := e.Store.GetPlanSnapshot(ctx, clientID)
	if snapErr != nil || snap == nil {
		return nil, err
	}
	zap.L().Warn("backend unreachable, using local snapshot",
		zap.String("client_id", clientID),
		zap.Time("saved_at", snap.SavedAt),
		zap.Error(err),
	)
	return snap.Record, nil
}
