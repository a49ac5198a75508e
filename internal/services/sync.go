package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/rexsync/internal/logging"
	"github.com/dmitrijs2005/rexsync/internal/metrics"
	"github.com/dmitrijs2005/rexsync/internal/models"
	"github.com/dmitrijs2005/rexsync/internal/settings"
)

// Sync modes, used as metric labels.
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
	ModeSingle      = "single"
)

// ListingSource fetches listings from REX. *client.Client implements it.
type ListingSource interface {
	FindAll(ctx context.Context, limit, offset int, fetchAll bool) ([]*models.Listing, error)
	FindByID(ctx context.Context, id int64) (*models.Listing, error)
}

// ListingSaver persists one listing. *ListingService implements it.
type ListingSaver interface {
	Save(ctx context.Context, l *models.Listing) (bool, error)
}

// SyncService pulls listings from REX into the store. Runs are serialized
// within the process.
type SyncService struct {
	source   ListingSource
	saver    ListingSaver
	settings settings.Provider
	pageSize int
	logger   logging.Logger
	now      func() time.Time

	mu sync.Mutex
}

var _ Syncer = (*SyncService)(nil)

func NewSyncService(source ListingSource, saver ListingSaver, s settings.Provider, pageSize int, logger logging.Logger) *SyncService {
	return &SyncService{
		source:   source,
		saver:    saver,
		settings: s,
		pageSize: pageSize,
		logger:   logger,
		now:      time.Now,
	}
}

// SyncAll fetches listings (every page when fetchAll) and saves each one.
// Rejected and cancelled saves are counted and skipped; a storage error
// ends the run. Only a run without fetchAll moves the last-sync checkpoint.
// The fetched listings are returned with their ids and validation errors
// filled in.
func (s *SyncService) SyncAll(ctx context.Context, limit, offset int, fetchAll bool) (_ []*models.Listing, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mode := ModeIncremental
	if fetchAll {
		mode = ModeFull
	}
	start := time.Now()
	defer func() { metrics.ObserveSync(mode, err, time.Since(start)) }()

	if limit <= 0 {
		limit = s.pageSize
	}

	fetched, err := s.source.FindAll(ctx, limit, offset, fetchAll)
	if err != nil {
		s.logger.Error(ctx, "rex fetch failed", "mode", mode, "error", err)
		return nil, err
	}

	var saved, rejected int
	for _, l := range fetched {
		if l == nil || l.ExternalID <= 0 {
			continue
		}
		ok, err := s.saver.Save(ctx, l)
		if err != nil {
			s.logger.Error(ctx, "listing save failed", "listing_id", l.ExternalID, "error", err)
			return nil, fmt.Errorf("save listing %d: %w", l.ExternalID, err)
		}
		if ok {
			saved++
		} else {
			rejected++
			s.logger.Debug(ctx, "listing rejected", "listing_id", l.ExternalID, "errors", l.Errors)
		}
	}

	if !fetchAll {
		if err := s.settings.SetLastSync(ctx, s.now()); err != nil {
			return nil, fmt.Errorf("store checkpoint: %w", err)
		}
	}

	s.logger.Info(ctx, "sync finished", "mode", mode, "fetched", len(fetched), "saved", saved, "rejected", rejected)
	return fetched, nil
}

// SyncOne fetches one listing and saves it. A failed save is logged and
// the fetched listing still returned; (nil, nil) means REX has no such
// listing.
func (s *SyncService) SyncOne(ctx context.Context, externalID int64) (_ *models.Listing, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() { metrics.ObserveSync(ModeSingle, err, time.Since(start)) }()

	l, err := s.source.FindByID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, nil
	}

	if _, serr := s.saver.Save(ctx, l); serr != nil {
		s.logger.Warn(ctx, "listing save failed", "listing_id", externalID, "error", serr)
	}
	return l, nil
}

// LastSync returns the checkpoint of the last incremental run.
func (s *SyncService) LastSync(ctx context.Context) (time.Time, error) {
	return s.settings.LastSync(ctx)
}

// Due reports whether a poll interval has passed since the checkpoint.
// It is always due before the first incremental run.
func (s *SyncService) Due(ctx context.Context, now time.Time) (bool, error) {
	last, err := s.settings.LastSync(ctx)
	if err != nil {
		return false, err
	}
	if last.IsZero() {
		return true, nil
	}
	return now.Sub(last) >= s.settings.PollInterval(), nil
}
