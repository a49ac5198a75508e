// Package repomanager vends dialect-specific repositories and applies the
// embedded goose migrations for the selected database.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/rexsync/internal/common"
	"github.com/dmitrijs2005/rexsync/internal/config"
	"github.com/dmitrijs2005/rexsync/internal/dbx"
	"github.com/dmitrijs2005/rexsync/internal/filex"
	"github.com/dmitrijs2005/rexsync/internal/migrations"
	"github.com/dmitrijs2005/rexsync/internal/repositories/listings"
	"github.com/dmitrijs2005/rexsync/internal/repositories/metadata"
	"github.com/pressly/goose/v3"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Listings(db dbx.DBTX) listings.Repository
	Metadata(db dbx.DBTX) metadata.Repository
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

func migrate(ctx context.Context, db *sql.DB, dialect, dir string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect %s: %w", dialect, err)
	}
	if err := gooseUpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// New returns the manager for a configured database driver.
func New(driver string) (RepositoryManager, error) {
	switch driver {
	case config.DriverSQLite:
		return NewSQLiteRepositoryManager(), nil
	case config.DriverPostgres:
		return NewPostgresRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", common.ErrInvalidConfig, driver)
	}
}

// sqlDriverName maps a configured driver to its database/sql driver name.
func sqlDriverName(driver string) string {
	if driver == config.DriverPostgres {
		return "pgx"
	}
	return "sqlite"
}

// Open connects to the database, checks the connection and applies
// migrations. The caller owns the returned *sql.DB.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, RepositoryManager, error) {
	m, err := New(driver)
	if err != nil {
		return nil, nil, err
	}

	if driver == config.DriverSQLite {
		if path := filex.SQLitePath(dsn); path != "" {
			if err := filex.EnsureParentDir(path); err != nil {
				return nil, nil, err
			}
		}
	}

	db, err := sql.Open(sqlDriverName(driver), dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, m, nil
}
