package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/dmitrijs2005/rexsync/internal/dbx"
	"github.com/dmitrijs2005/rexsync/internal/logging"
	"github.com/dmitrijs2005/rexsync/internal/models"
	"github.com/dmitrijs2005/rexsync/internal/repositories/listings"
	"github.com/dmitrijs2005/rexsync/internal/repositories/repomanager"
	"github.com/dmitrijs2005/rexsync/internal/rex/auth"
	"github.com/dmitrijs2005/rexsync/internal/rex/client"
	"github.com/dmitrijs2005/rexsync/internal/rex/rextest"
	"github.com/dmitrijs2005/rexsync/internal/rex/transport"
	"github.com/dmitrijs2005/rexsync/internal/settings"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

type env struct {
	db       *sql.DB
	manager  repomanager.RepositoryManager
	store    *settings.Store
	srv      *rextest.Server
	listings *ListingService
	sync     *SyncService
}

func openDB(t *testing.T) (*sql.DB, repomanager.RepositoryManager) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "rexsync.db") + "?_pragma=busy_timeout(5000)"
	db, m, err := repomanager.Open(context.Background(), "sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, m
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, m := openDB(t)
	return newEnvWith(t, db, m)
}

func newEnvWith(t *testing.T, db *sql.DB, m repomanager.RepositoryManager) *env {
	t.Helper()
	store := settings.NewStore(m.Metadata(db),
		settings.Credentials{Username: rextest.Username, Password: rextest.Password}, time.Minute)

	srv := rextest.NewServer(t)
	tr, err := transport.New(transport.Options{BaseURL: srv.BaseURL()})
	require.NoError(t, err)
	tm := auth.NewTokenManager(tr, store, 5, logging.Nop())
	cl := client.New(tr, tm, client.Options{}, logging.Nop())

	ls := NewListingService(db, m, logging.Nop())
	ss := NewSyncService(cl, ls, store, 2, logging.Nop())
	ls.SetSyncer(ss)

	return &env{db: db, manager: m, store: store, srv: srv, listings: ls, sync: ss}
}

func (e *env) count(t *testing.T) int64 {
	t.Helper()
	n, err := e.listings.Count(context.Background())
	require.NoError(t, err)
	return n
}

func listing(ext int64, status string) *models.Listing {
	return &models.Listing{
		ExternalID: ext,
		Status:     status,
		Details:    json.RawMessage(`{"id":` + strconv.FormatInt(ext, 10) + `}`),
	}
}

// wrappedManager lets a test intercept the listings repository.
type wrappedManager struct {
	repomanager.RepositoryManager
	wrap func(listings.Repository) listings.Repository
}

func (m wrappedManager) Listings(db dbx.DBTX) listings.Repository {
	return m.wrap(m.RepositoryManager.Listings(db))
}
