// Package app wires the REX client, the listing store and the sync
// orchestrator together and runs the polling service.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/rexsync/internal/config"
	"github.com/dmitrijs2005/rexsync/internal/logging"
	"github.com/dmitrijs2005/rexsync/internal/models"
	"github.com/dmitrijs2005/rexsync/internal/repositories/repomanager"
	"github.com/dmitrijs2005/rexsync/internal/rex/auth"
	"github.com/dmitrijs2005/rexsync/internal/rex/client"
	"github.com/dmitrijs2005/rexsync/internal/rex/transport"
	"github.com/dmitrijs2005/rexsync/internal/services"
	"github.com/dmitrijs2005/rexsync/internal/settings"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// DefaultCheckInterval is how often Serve asks whether a sync is due.
const DefaultCheckInterval = 15 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	settings *settings.Store
	tokens   *auth.TokenManager
	listings *services.ListingService
	sync     *services.SyncService

	checkInterval time.Duration
}

// New opens the database, applies migrations and builds the service graph.
func New(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, m, err := repomanager.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	store := settings.NewStore(m.Metadata(db), settings.Credentials{
		Username: c.RexUsername,
		Password: c.RexPassword,
		AgencyID: c.RexAgencyID,
	}, c.PollInterval)

	tr, err := transport.New(transport.Options{
		BaseURL:           c.RexBaseURL,
		Timeout:           c.RequestTimeout,
		RequestsPerSecond: c.RequestsPerSecond,
		Logger:            logger.With("component", "transport"),
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	tm := auth.NewTokenManager(tr, store, c.TokenLifetime, logger.With("component", "auth"))
	rc := client.New(tr, tm, client.Options{Feed: c.RexFeed, AgencyID: c.RexAgencyID}, logger.With("component", "client"))

	ls := services.NewListingService(db, m, logger.With("component", "listings"))
	ss := services.NewSyncService(rc, ls, store, c.PageSize, logger.With("component", "sync"))
	ls.SetSyncer(ss)

	return &App{
		config:        c,
		logger:        logger,
		db:            db,
		settings:      store,
		tokens:        tm,
		listings:      ls,
		sync:          ss,
		checkInterval: DefaultCheckInterval,
	}, nil
}

func (a *App) Close() error {
	return a.db.Close()
}

func (a *App) Listings() *services.ListingService {
	return a.listings
}

func (a *App) Sync() *services.SyncService {
	return a.sync
}

// Login forces a fresh REX login and stores the token.
func (a *App) Login(ctx context.Context) error {
	_, err := a.tokens.Login(ctx)
	return err
}

// Logout forgets the stored token.
func (a *App) Logout(ctx context.Context) error {
	return a.settings.ClearToken(ctx)
}

// Status summarises the local store.
type Status struct {
	Listings int64      `json:"listings"`
	LastSync *time.Time `json:"last_sync,omitempty"`
	Due      bool       `json:"due"`
}

func (a *App) Status(ctx context.Context) (*Status, error) {
	n, err := a.listings.Count(ctx)
	if err != nil {
		return nil, err
	}
	last, err := a.sync.LastSync(ctx)
	if err != nil {
		return nil, err
	}
	due, err := a.sync.Due(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	st := &Status{Listings: n, Due: due}
	if !last.IsZero() {
		st.LastSync = &last
	}
	return st, nil
}

// SyncAndList runs a sync and returns every stored listing afterwards.
func (a *App) SyncAndList(ctx context.Context, full bool, limit, offset int) ([]models.ListingView, error) {
	if _, err := a.sync.SyncAll(ctx, limit, offset, full); err != nil {
		return nil, err
	}
	return a.listings.FindAll(ctx, "", false)
}

// Serve runs the poll loop, and the metrics endpoint when configured,
// until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	a.logger.Info(ctx, "Starting rexsync...", "feed", a.config.RexFeed, "poll_interval", a.config.PollInterval.String())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.poll(ctx)
	})

	if a.config.MetricsAddr != "" {
		srv := a.metricsServer()
		g.Go(func() error {
			a.logger.Info(ctx, "metrics listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	a.logger.Info(context.Background(), "rexsync stopped")
	return err
}

func (a *App) metricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	return &http.Server{
		Addr:              a.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// poll seeds an empty store with a full sync and then runs an incremental
// sync whenever one is due. Sync failures are logged and retried on the
// next tick.
func (a *App) poll(ctx context.Context) error {
	n, err := a.listings.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := a.sync.SyncAll(ctx, 0, 0, true); err != nil {
			a.logger.Warn(ctx, "initial full sync failed", "error", err)
		}
	}

	ticker := time.NewTicker(a.checkInterval)
	defer ticker.Stop()

	for {
		a.tick(ctx, time.Now())

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (a *App) tick(ctx context.Context, now time.Time) {
	due, err := a.sync.Due(ctx, now)
	if err != nil {
		a.logger.Error(ctx, "cannot read sync checkpoint", "error", err)
		return
	}
	if !due {
		return
	}
	if _, err := a.sync.SyncAll(ctx, 0, 0, false); err != nil && ctx.Err() == nil {
		a.logger.Warn(ctx, "scheduled sync failed", "error", err)
	}
}
