//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"mlpx/internal/model"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveDocument(ctx context.Context, entry model.ArchiveEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO documents (id, name, created_at, schema_version, snapshots, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			created_at = excluded.created_at,
			schema_version = excluded.schema_version,
			snapshots = excluded.snapshots,
			payload = excluded.payload
	`, entry.ID, entry.Name, entry.CreatedAt.UTC().UnixNano(), entry.SchemaVersion, entry.Snapshots, entry.Payload)
	return err
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (model.ArchiveEntry, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.ArchiveEntry{}, false, err
	}

	var (
		entry   model.ArchiveEntry
		created int64
	)
	err = db.QueryRowContext(ctx, `
		SELECT id, name, created_at, schema_version, snapshots, payload
		FROM documents WHERE id = ?
	`, id).Scan(&entry.ID, &entry.Name, &created, &entry.SchemaVersion, &entry.Snapshots, &entry.Payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ArchiveEntry{}, false, nil
		}
		return model.ArchiveEntry{}, false, err
	}
	entry.CreatedAt = time.Unix(0, created).UTC()
	entry.Size = len(entry.Payload)
	return entry, true, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]model.ArchiveEntry, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, name, created_at, schema_version, snapshots, length(payload)
		FROM documents ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ArchiveEntry
	for rows.Next() {
		var (
			entry   model.ArchiveEntry
			created int64
		)
		if err := rows.Scan(&entry.ID, &entry.Name, &created, &entry.SchemaVersion, &entry.Snapshots, &entry.Size); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		entry.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) (bool, error) {
	db, err := s.getDB()
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			snapshots INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS documents_created_at ON documents (created_at);
	`)
	return err
}
