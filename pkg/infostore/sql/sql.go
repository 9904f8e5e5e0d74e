// Package sql implements engine.InfoStore against a relational database,
// storing each upload record as a single JSON-encoded row. Works against
// any backend jmoiron/sqlx supports; this project wires MySQL, Postgres,
// and SQLite drivers specifically (see the composer in cmd/tusgate).
package sql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tusgate/tusgate/pkg/engine"
)

// Store persists records in a single table keyed by upload id.
type Store struct {
	db        *sqlx.DB
	tableName string
}

// New wraps an already-connected *sqlx.DB. Call EnsureSchema once at
// startup to create the backing table if it does not exist.
func New(db *sqlx.DB, tableName string) *Store {
	if tableName == "" {
		tableName = "uploads"
	}
	return &Store{db: db, tableName: tableName}
}

// EnsureSchema creates the backing table if necessary. The schema is
// intentionally minimal — a primary-key id and an opaque JSON payload —
// and works unmodified on Postgres and SQLite. MySQL rejects a TEXT primary
// key without a key length, so EnsureSchema fails there.
func (s *Store) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL
	)`, s.tableName)
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

func (s *Store) Create(ctx context.Context, record engine.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, data) VALUES (?, ?)`, s.tableName)
	_, err = s.db.ExecContext(ctx, s.db.Rebind(query), record.ID, string(data))
	return err
}

func (s *Store) Get(ctx context.Context, id string) (engine.Record, error) {
	query := fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, s.tableName)
	var data string
	err := s.db.GetContext(ctx, &data, s.db.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Record{}, engine.ErrRecordNotFound
	}
	if err != nil {
		return engine.Record{}, err
	}

	var rec engine.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return engine.Record{}, err
	}
	return rec, nil
}

func (s *Store) Update(ctx context.Context, record engine.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET data = ? WHERE id = ?`, s.tableName)
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), string(data), record.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return engine.ErrRecordNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.tableName)
	_, err := s.db.ExecContext(ctx, s.db.Rebind(query), id)
	return err
}

// ListIDs implements engine.ListableInfoStore.
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT id FROM %s`, s.tableName)
	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, err
	}
	return ids, nil
}

var _ engine.InfoStore = (*Store)(nil)
var _ engine.ListableInfoStore = (*Store)(nil)
