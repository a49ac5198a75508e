package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/rexsync/internal/dbx"
	"github.com/dmitrijs2005/rexsync/internal/migrations"
	"github.com/dmitrijs2005/rexsync/internal/repositories/listings"
	"github.com/dmitrijs2005/rexsync/internal/repositories/metadata"
	_ "modernc.org/sqlite"
)

// SQLiteRepositoryManager vends SQLite-backed repositories.
type SQLiteRepositoryManager struct{}

func NewSQLiteRepositoryManager() *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{}
}

func (m *SQLiteRepositoryManager) Listings(db dbx.DBTX) listings.Repository {
	return listings.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) Metadata(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, db, "sqlite3", migrations.SQLiteDir)
}
