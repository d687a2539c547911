package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/planwise/planwise-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS plan_snapshots (
	client_id TEXT PRIMARY KEY,
	record    TEXT NOT NULL,
	saved_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS client_list_cache (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	clients    TEXT NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_log_mirror (
	id        INTEGER PRIMARY KEY CHECK (id = 1),
	entries   TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS failed_edits (
	id          TEXT PRIMARY KEY,
	client_id   TEXT NOT NULL,
	field_id    TEXT NOT NULL,
	field_name  TEXT NOT NULL,
	value       TEXT NOT NULL,
	reason      TEXT,
	error       TEXT NOT NULL,
	resolved    INTEGER NOT NULL DEFAULT 0,
	failed_at   DATETIME NOT NULL,
	resolved_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_failed_edits_client_id ON failed_edits(client_id);
CREATE INDEX IF NOT EXISTS idx_failed_edits_resolved ON failed_edits(resolved);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SavePlanSnapshot(ctx context.Context, clientID string, rec *model.PlanRecord) error {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal plan record")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plan_snapshots (client_id, record, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT (client_id) DO UPDATE SET record = excluded.record, saved_at = excluded.saved_at`,
		clientID, string(recordJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save snapshot %s", clientID)
}

func (s *SQLiteStore) GetPlanSnapshot(ctx context.Context, clientID string) (*PlanSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT client_id, record, saved_at FROM plan_snapshots WHERE client_id = ?`,
		clientID,
	)

	var snap PlanSnapshot
	var recordJSON string
	err := row.Scan(&snap.ClientID, &recordJSON, &snap.SavedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get snapshot %s", clientID)
	}

	snap.Record = model.NewPlanRecord()
	if err := json.Unmarshal([]byte(recordJSON), snap.Record); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal plan record")
	}
	return &snap, nil
}

func (s *SQLiteStore) DeletePlanSnapshot(ctx context.Context, clientID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM plan_snapshots WHERE client_id = ?`, clientID)
	return eris.Wrapf(err, "sqlite: delete snapshot %s", clientID)
}

func (s *SQLiteStore) SetClientList(ctx context.Context, clients []model.ClientSummary, ttl time.Duration) error {
	clientsJSON, err := json.Marshal(clients)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal client list")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO client_list_cache (id, clients, cached_at, expires_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET clients = excluded.clients, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		string(clientsJSON), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set client list")
}

func (s *SQLiteStore) GetClientList(ctx context.Context) ([]model.ClientSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT clients FROM client_list_cache WHERE id = 1 AND expires_at > datetime('now')`,
	)

	var clientsJSON string
	err := row.Scan(&clientsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get client list")
	}

	var clients []model.ClientSummary
	if err := json.Unmarshal([]byte(clientsJSON), &clients); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal client list")
	}
	return clients, nil
}

func (s *SQLiteStore) InvalidateClientList(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM client_list_cache WHERE id = 1`)
	return eris.Wrap(err, "sqlite: invalidate client list")
}

func (s *SQLiteStore) SaveAuditLog(ctx context.Context, entries []model.AuditEntry) error {
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit log")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log_mirror (id, entries, cached_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET entries = excluded.entries, cached_at = excluded.cached_at`,
		string(entriesJSON), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: save audit log")
}

func (s *SQLiteStore) GetAuditLog(ctx context.Context) ([]model.AuditEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT entries FROM audit_log_mirror WHERE id = 1`)

	var entriesJSON string
	err := row.Scan(&entriesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get audit log")
	}

	var entries []model.AuditEntry
	if err := json.Unmarshal([]byte(entriesJSON), &entries); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal audit log")
	}
	return entries, nil
}

func (s *SQLiteStore) RecordFailedEdit(ctx context.Context, fe FailedEdit) error {
	if fe.ID == "" {
		fe.ID = uuid.New().String()
	}
	if fe.FailedAt.IsZero() {
		fe.FailedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failed_edits (id, client_id, field_id, field_name, value, reason, error, resolved, failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		fe.ID, fe.ClientID, fe.FieldID, fe.FieldName, fe.Value, fe.Reason, fe.Error, fe.FailedAt,
	)
	return eris.Wrap(err, "sqlite: record failed edit")
}

func (s *SQLiteStore) ListFailedEdits(ctx context.Context, filter FailedEditFilter) ([]FailedEdit, error) {
	query := `SELECT id, client_id, field_id, field_name, value, reason, error, resolved, failed_at, resolved_at
	          FROM failed_edits WHERE 1=1`
	var args []any

	if filter.ClientID != "" {
		query += ` AND client_id = ?`
		args = append(args, filter.ClientID)
	}
	if !filter.IncludeResolved {
		query += ` AND resolved = 0`
	}
	query += ` ORDER BY failed_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list failed edits")
	}
	defer rows.Close()

	var edits []FailedEdit
	for rows.Next() {
		var fe FailedEdit
		var reason sql.NullString
		var resolvedAt sql.NullTime
		if err := rows.Scan(&fe.ID, &fe.ClientID, &fe.FieldID, &fe.FieldName,
			&fe.Value, &reason, &fe.Error, &fe.Resolved, &fe.FailedAt, &resolvedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan failed edit")
		}
		fe.Reason = reason.String
		if resolvedAt.Valid {
			t := resolvedAt.Time
			fe.ResolvedAt = &t
		}
		edits = append(edits, fe)
	}
	return edits, eris.Wrap(rows.Err(), "sqlite: list failed edits iterate")
}

func (s *SQLiteStore) ResolveFailedEdit(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE failed_edits SET resolved = 1, resolved_at = ? WHERE id = ? AND resolved = 0`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: resolve failed edit %s", id)
	}
	return checkRowsAffected(res, "failed_edit", id)
}

func (s *SQLiteStore) CountFailedEdits(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM failed_edits WHERE resolved = 0`,
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count failed edits")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
