package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/rexsync/internal/common"
	"github.com/dmitrijs2005/rexsync/internal/migrations"
	"github.com/dmitrijs2005/rexsync/internal/models"
	"github.com/dmitrijs2005/rexsync/internal/repositories/listings"
	"github.com/dmitrijs2005/rexsync/internal/repositories/metadata"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ByDriver(t *testing.T) {
	m, err := New("sqlite")
	require.NoError(t, err)
	assert.IsType(t, &SQLiteRepositoryManager{}, m)

	m, err = New("postgres")
	require.NoError(t, err)
	assert.IsType(t, &PostgresRepositoryManager{}, m)

	_, err = New("mysql")
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	pg := NewPostgresRepositoryManager()
	assert.IsType(t, &listings.PostgresRepository{}, pg.Listings(db))
	assert.IsType(t, &metadata.PostgresRepository{}, pg.Metadata(db))

	lite := NewSQLiteRepositoryManager()
	assert.IsType(t, &listings.SQLiteRepository{}, lite.Listings(db))
	assert.IsType(t, &metadata.SQLiteRepository{}, lite.Metadata(db))
}

func TestPostgresRunMigrations_UsesPostgresDir(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != migrations.PostgresDir {
			return errors.New("unexpected dir " + dir)
		}
		return nil
	}

	require.NoError(t, NewPostgresRepositoryManager().RunMigrations(context.Background(), db))
}

func TestRunMigrations_Error(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	err = NewPostgresRepositoryManager().RunMigrations(context.Background(), db)
	require.ErrorContains(t, err, "boom")
}

func TestOpen_SQLiteAppliesMigrations(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "rexsync.db") + "?_pragma=busy_timeout(5000)"
	ctx := context.Background()

	db, m, err := Open(ctx, "sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	rec := models.NewListingRecord()
	rec.ExternalID = 1
	rec.Status = models.StatusCurrent
	rec.Details = `{"id":1}`
	require.NoError(t, m.Listings(db).Create(ctx, rec))
	require.NoError(t, m.Metadata(db).Set(ctx, "k", []byte("v")))

	// Running the migrations again is a no-op.
	require.NoError(t, m.RunMigrations(ctx, db))

	var version int64
	require.NoError(t, db.QueryRow(`SELECT MAX(version_id) FROM goose_db_version`).Scan(&version))
	assert.Equal(t, int64(1), version)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, _, err := Open(context.Background(), "oracle", "")
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestOpen_SQLiteCreatesDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "var", "lib", "rexsync.db")

	db, _, err := Open(context.Background(), "sqlite", "file:"+path)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(path)
	require.NoError(t, err)
}
