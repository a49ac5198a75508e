// Package services holds the listing store and the sync orchestration that
// feeds it from REX.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/rexsync/internal/common"
	"github.com/dmitrijs2005/rexsync/internal/dbx"
	"github.com/dmitrijs2005/rexsync/internal/logging"
	"github.com/dmitrijs2005/rexsync/internal/metrics"
	"github.com/dmitrijs2005/rexsync/internal/models"
	"github.com/dmitrijs2005/rexsync/internal/repositories/listings"
	"github.com/dmitrijs2005/rexsync/internal/repositories/repomanager"
)

// DefaultRecentCount is used by FindRecent when count <= 0.
const DefaultRecentCount = 4

// Syncer refreshes local listings from REX. *SyncService implements it.
type Syncer interface {
	SyncAll(ctx context.Context, limit, offset int, fetchAll bool) ([]*models.Listing, error)
	SyncOne(ctx context.Context, externalID int64) (*models.Listing, error)
}

// ListingService saves listings with upsert semantics and serves the
// stored records.
type ListingService struct {
	tx          *dbx.Transactor
	repomanager repomanager.RepositoryManager
	logger      logging.Logger

	mu        sync.RWMutex
	listeners []SaveListener
	cache     map[int64]*models.Listing
	syncer    Syncer
}

func NewListingService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *ListingService {
	return &ListingService{
		tx:          dbx.NewTransactor(db),
		repomanager: m,
		logger:      logger,
		cache:       make(map[int64]*models.Listing),
	}
}

// SetSyncer wires the orchestrator used by refreshing reads.
func (s *ListingService) SetSyncer(syncer Syncer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncer = syncer
}

func (s *ListingService) AddListener(l SaveListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Cached returns the listing last saved under internal id in this process.
func (s *ListingService) Cached(id int64) (*models.Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.cache[id]
	return l, ok
}

// Save inserts or updates the record for l.
//
// It returns (false, nil) when validation fails (details in l.Errors) or a
// listener cancels the save, and a non-nil error only for storage faults.
// The write joins the transaction carried by ctx, if any; otherwise it runs
// in its own. An insert that loses a race on listing_id in its own
// transaction is retried once as an update of the winner's record. An
// update that would move a record onto another record's listing_id fails
// with common.ErrDuplicate.
func (s *ListingService) Save(ctx context.Context, l *models.Listing) (bool, error) {
	if l == nil {
		return false, errors.New("save: nil listing")
	}
	isNew := l.ID == 0
	owner := !s.tx.InTransaction(ctx)

	ok, inserted, err := s.save(ctx, l, isNew, false)
	if errors.Is(err, common.ErrDuplicate) && owner && inserted {
		s.logger.Warn(ctx, "listing inserted concurrently, retrying as update", "listing_id", l.ExternalID)
		ok, _, err = s.save(ctx, l, isNew, true)
	}

	switch {
	case err != nil:
	case ok:
		metrics.ListingsSavedTotal.WithLabelValues("saved").Inc()
	default:
		metrics.ListingsSavedTotal.WithLabelValues("rejected").Inc()
	}
	return ok, err
}

// save reports in inserted whether the write it attempted was an insert.
func (s *ListingService) save(ctx context.Context, l *models.Listing, isNew, byExternalID bool) (ok, inserted bool, err error) {
	rec, err := s.lookup(ctx, l, isNew || byExternalID)
	if err != nil {
		return false, false, err
	}
	if rec == nil {
		rec = models.NewListingRecord()
	}
	inserted = rec.IsNew()

	rec.Apply(l)
	l.Errors = rec.Validate()

	event := SaveEvent{Listing: l, IsNew: isNew}
	if s.beforeSave(ctx, event) || l.HasErrors() {
		return false, false, nil
	}

	err = s.tx.InTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Listings(tx)
		if inserted {
			if err := repo.Create(ctx, rec); err != nil {
				return err
			}
		} else if err := repo.Update(ctx, rec); err != nil {
			return err
		}
		if isNew || inserted {
			l.ID = rec.ID
		}
		return nil
	})
	if err != nil {
		return false, inserted, err
	}

	s.mu.Lock()
	s.cache[l.ID] = l
	s.mu.Unlock()

	s.afterSave(ctx, event)
	return true, inserted, nil
}

func (s *ListingService) lookup(ctx context.Context, l *models.Listing, byExternalID bool) (*models.ListingRecord, error) {
	repo := s.repomanager.Listings(s.tx.Conn(ctx))

	var (
		rec *models.ListingRecord
		err error
	)
	if byExternalID {
		rec, err = repo.GetByExternalID(ctx, l.ExternalID)
	} else {
		rec, err = repo.GetByID(ctx, l.ID)
	}
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup listing %d: %w", l.ExternalID, err)
	}
	return rec, nil
}

func (s *ListingService) snapshot() ([]SaveListener, Syncer) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SaveListener(nil), s.listeners...), s.syncer
}

func (s *ListingService) beforeSave(ctx context.Context, e SaveEvent) bool {
	listeners, _ := s.snapshot()
	cancel := false
	for _, l := range listeners {
		if l.BeforeSave(ctx, e) {
			cancel = true
		}
	}
	return cancel
}

func (s *ListingService) afterSave(ctx context.Context, e SaveEvent) {
	listeners, _ := s.snapshot()
	for _, l := range listeners {
		l.AfterSave(ctx, e)
	}
}

func (s *ListingService) repo(ctx context.Context) listings.Repository {
	return s.repomanager.Listings(s.tx.Conn(ctx))
}

// FindByID returns the stored listing with the given REX id. A missing
// record, or refresh, triggers a single-listing sync first; sync errors are
// logged and the stored state is returned. (nil, nil) means REX has no such
// listing either.
func (s *ListingService) FindByID(ctx context.Context, externalID int64, refresh bool) (*models.ListingView, error) {
	rec, err := s.findByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	if rec == nil || refresh {
		if _, syncer := s.snapshot(); syncer != nil {
			if _, err := syncer.SyncOne(ctx, externalID); err != nil {
				s.logger.Warn(ctx, "listing refresh failed", "listing_id", externalID, "error", err)
			}
			if rec, err = s.findByExternalID(ctx, externalID); err != nil {
				return nil, err
			}
		}
	}

	if rec == nil {
		return nil, nil
	}
	v := rec.View()
	return &v, nil
}

func (s *ListingService) findByExternalID(ctx context.Context, externalID int64) (*models.ListingRecord, error) {
	rec, err := s.repo(ctx).GetByExternalID(ctx, externalID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	return rec, err
}

// FindAll returns stored listings, all of them or those with status. With
// refresh a full sync runs first; its failure is logged and the stored
// state is returned.
func (s *ListingService) FindAll(ctx context.Context, status string, refresh bool) ([]models.ListingView, error) {
	if refresh {
		if _, syncer := s.snapshot(); syncer != nil {
			if _, err := syncer.SyncAll(ctx, 0, 0, true); err != nil {
				s.logger.Warn(ctx, "full refresh failed, serving stored listings", "error", err)
			}
		}
	}

	recs, err := s.repo(ctx).List(ctx, status)
	if err != nil {
		return nil, err
	}
	return views(recs), nil
}

// FindRecent returns up to count current listings by publish date, or
// sold listings by sold date, newest first.
func (s *ListingService) FindRecent(ctx context.Context, current bool, count int) ([]models.ListingView, error) {
	if count <= 0 {
		count = DefaultRecentCount
	}
	status, by := models.StatusCurrent, listings.SortByPublished
	if !current {
		status, by = models.StatusSold, listings.SortBySold
	}

	recs, err := s.repo(ctx).Recent(ctx, status, by, count)
	if err != nil {
		return nil, err
	}
	return views(recs), nil
}

// Count returns the number of stored listings.
func (s *ListingService) Count(ctx context.Context) (int64, error) {
	return s.repo(ctx).Count(ctx)
}

func views(recs []*models.ListingRecord) []models.ListingView {
	out := make([]models.ListingView, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.View())
	}
	return out
}
