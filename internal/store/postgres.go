package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/planwise/planwise-cli/internal/model"
)

// Pool is the slice of pgxpool.Pool the store uses. pgxmock's pool satisfies
// it, which keeps the Postgres store unit-testable without a live database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool. Used when several advisors
// share one working state; SQLite covers the single-operator case.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS plan_snapshots (
	client_id TEXT PRIMARY KEY,
	record    JSONB NOT NULL,
	saved_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS client_list_cache (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	clients    JSONB NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log_mirror (
	id        INTEGER PRIMARY KEY CHECK (id = 1),
	entries   JSONB NOT NULL,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS failed_edits (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	client_id   TEXT NOT NULL,
	field_id    TEXT NOT NULL,
	field_name  TEXT NOT NULL,
	value       TEXT NOT NULL,
	reason      TEXT,
	error       TEXT NOT NULL,
	resolved    BOOLEAN NOT NULL DEFAULT false,
	failed_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_failed_edits_client_id ON failed_edits(client_id);
CREATE INDEX IF NOT EXISTS idx_failed_edits_resolved ON failed_edits(resolved);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) SavePlanSnapshot(ctx context.Context, clientID string, rec *model.PlanRecord) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal plan record")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO plan_snapshots (client_id, record, saved_at) VALUES ($1, $2, $3)
		 ON CONFLICT (client_id) DO UPDATE SET record = $2, saved_at = $3`,
		clientID, recordJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save snapshot %s", clientID)
}

func (s *PostgresStore) GetPlanSnapshot(ctx context.Context, clientID string) (*PlanSnapshot, error) {
	var snap PlanSnapshot
	var recordJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT client_id, record, saved_at FROM plan_snapshots WHERE client_id = $1`,
		clientID,
	).Scan(&snap.ClientID, &recordJSON, &snap.SavedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get snapshot %s", clientID)
	}

	snap.Record = model.NewPlanRecord()
	if err := json.Unmarshal(recordJSON, snap.Record); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal plan record")
	}
	return &snap, nil
}

func (s *PostgresStore) DeletePlanSnapshot(ctx context.Context, clientID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM plan_snapshots WHERE client_id = $1`, clientID)
	return eris.Wrapf(err, "postgres: delete snapshot %s", clientID)
}

func (s *PostgresStore) SetClientList(ctx context.Context, clients []model.ClientSummary, ttl time.Duration) error {
	clientsJSON, err := json.Marshal(clients)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal client list")
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO client_list_cache (id, clients, cached_at, expires_at) VALUES (1, $1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET clients = $1, cached_at = $2, expires_at = $3`,
		clientsJSON, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set client list")
}

func (s *PostgresStore) GetClientList(ctx context.Context) ([]model.ClientSummary, error) {
	var clientsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT clients FROM client_list_cache WHERE id = 1 AND expires_at > now()`,
	).Scan(&clientsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get client list")
	}

	var clients []model.ClientSummary
	if err := json.Unmarshal(clientsJSON, &clients); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal client list")
	}
	return clients, nil
}

func (s *PostgresStore) InvalidateClientList(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM client_list_cache WHERE id = 1`)
	return eris.Wrap(err, "postgres: invalidate client list")
}

func (s *PostgresStore) SaveAuditLog(ctx context.Context, entries []model.AuditEntry) error {
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal audit log")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_log_mirror (id, entries, cached_at) VALUES (1, $1, $2)
		 ON CONFLICT (id) DO UPDATE SET entries = $1, cached_at = $2`,
		entriesJSON, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: save audit log")
}

func (s *PostgresStore) GetAuditLog(ctx context.Context) ([]model.AuditEntry, error) {
	var entriesJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT entries FROM audit_log_mirror WHERE id = 1`,
	).Scan(&entriesJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get audit log")
	}

	var entries []model.AuditEntry
	if err := json.Unmarshal(entriesJSON, &entries); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal audit log")
	}
	return entries, nil
}

func (s *PostgresStore) RecordFailedEdit(ctx context.Context, fe FailedEdit) error {
	if fe.ID == "" {
		fe.ID = uuid.New().String()
	}
	if fe.FailedAt.IsZero() {
		fe.FailedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO failed_edits (id, client_id, field_id, field_name, value, reason, error, resolved, failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)`,
		fe.ID, fe.ClientID, fe.FieldID, fe.FieldName, fe.Value, fe.Reason, fe.Error, fe.FailedAt,
	)
	return eris.Wrap(err, "postgres: record failed edit")
}

func (s *PostgresStore) ListFailedEdits(ctx context.Context, filter FailedEditFilter) ([]FailedEdit, error) {
	query := `SELECT id, client_id, field_id, field_name, value, reason, error, resolved, failed_at, resolved_at
	          FROM failed_edits WHERE true`
	args := []any{}
	argIdx := 1

	if filter.ClientID != "" {
		query += fmt.Sprintf(` AND client_id = $%d`, argIdx)
		args = append(args, filter.ClientID)
		argIdx++
	}
	if !filter.IncludeResolved {
		query += ` AND resolved = false`
	}
	query += ` ORDER BY failed_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list failed edits")
	}
	defer rows.Close()

	var edits []FailedEdit
	for rows.Next() {
		var fe FailedEdit
		var reason *string
		var resolvedAt *time.Time
		if err := rows.Scan(&fe.ID, &fe.ClientID, &fe.FieldID, &fe.FieldName,
			&fe.Value, &reason, &fe.Error, &fe.Resolved, &fe.FailedAt, &resolvedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan failed edit")
		}
		if reason != nil {
			fe.Reason = *reason
		}
		fe.ResolvedAt = resolvedAt
		edits = append(edits, fe)
	}
	return edits, eris.Wrap(rows.Err(), "postgres: list failed edits iterate")
}

func (s *PostgresStore) ResolveFailedEdit(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE failed_edits SET resolved = true, resolved_at = $1 WHERE id = $2 AND resolved = false`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: resolve failed edit %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("failed_edit not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) CountFailedEdits(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM failed_edits WHERE resolved = false`,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count failed edits")
}
