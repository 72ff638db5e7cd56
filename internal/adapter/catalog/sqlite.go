package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/thushan/ngsiproxy/internal/core/domain"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS resource_extras (
		resource_id TEXT NOT NULL,
		key         TEXT NOT NULL,
		value       TEXT NOT NULL,
		PRIMARY KEY (resource_id, key)
	);
	CREATE INDEX IF NOT EXISTS idx_resource_extras_resource ON resource_extras(resource_id);
`

// SQLiteBackend stores each resource as rows of resource_extras, the same
// flat layout the catalog uses for custom resource fields.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

func NewSQLiteBackend(ctx context.Context, path string) (*SQLiteBackend, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps :memory: databases shared and avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err = db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}

	return &SQLiteBackend{db: db, path: path}, nil
}

func (s *SQLiteBackend) Load(ctx context.Context, id string) (Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM resource_extras WHERE resource_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("loading resource %s: %w", id, err)
	}
	defer rows.Close()

	record := make(Record)
	for rows.Next() {
		var key, value string
		if err = rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("loading resource %s: %w", id, err)
		}
		record[key] = value
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("loading resource %s: %w", id, err)
	}

	if len(record) == 0 {
		return nil, domain.ErrResourceNotFound
	}
	return record, nil
}

// Save replaces every row of the resource in one transaction
func (s *SQLiteBackend) Save(ctx context.Context, id string, record Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, `DELETE FROM resource_extras WHERE resource_id = ?`, id); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO resource_extras (resource_id, key, value) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for key, value := range record {
		if _, err = stmt.ExecContext(ctx, id, key, value); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteBackend) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT resource_id) FROM resource_extras`).Scan(&count)
	return count, err
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
