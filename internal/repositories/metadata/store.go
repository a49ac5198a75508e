package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/rexsync/internal/dbx"
)

// statements is the SQL one dialect needs for the metadata table.
type statements struct {
	get    string
	upsert string
	delete string
}

var sqliteStatements = statements{
	get: `SELECT value FROM metadata WHERE key = ?`,
	upsert: `INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
	delete: `DELETE FROM metadata WHERE key = ?`,
}

var postgresStatements = statements{
	get: `SELECT value FROM metadata WHERE key = $1`,
	upsert: `INSERT INTO metadata (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
	delete: `DELETE FROM metadata WHERE key = $1`,
}

// sqlStore implements Repository for any database/sql dialect.
type sqlStore struct {
	db dbx.DBTX
	q  statements
}

func (s sqlStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, s.q.get, key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	case value == nil:
		// The driver scans an empty BLOB as nil; nil is reserved for a missing key.
		return []byte{}, nil
	}
	return value, nil
}

// Set upserts key; the last writer wins. A nil value is stored as empty.
func (s sqlStore) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if _, err := s.db.ExecContext(ctx, s.q.upsert, key, value); err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s sqlStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.q.delete, key); err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

type SQLiteRepository struct {
	sqlStore
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{sqlStore{db: db, q: sqliteStatements}}
}

type PostgresRepository struct {
	sqlStore
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{sqlStore{db: db, q: postgresStatements}}
}

var (
	_ Repository = (*SQLiteRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
)
