// Package listings stores listing records in SQLite or PostgreSQL.
//
// Both implementations work over a dbx.DBTX, so the same repository can run
// against *sql.DB or inside a transaction.
package listings

import (
	"context"

	"github.com/dmitrijs2005/rexsync/internal/models"
)

// SortBy selects the date column used by Recent.
type SortBy int

const (
	SortByPublished SortBy = iota
	SortBySold
)

func (s SortBy) column() string {
	if s == SortBySold {
		return "sold_date"
	}
	return "publish_date"
}

// Repository is the storage contract for listing records.
//
// Lookups return common.ErrorNotFound when no row matches. Create returns
// common.ErrDuplicate when a record with the same listing_id exists.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*models.ListingRecord, error)
	GetByExternalID(ctx context.Context, externalID int64) (*models.ListingRecord, error)
	Create(ctx context.Context, rec *models.ListingRecord) error
	Update(ctx context.Context, rec *models.ListingRecord) error
	List(ctx context.Context, status string) ([]*models.ListingRecord, error)
	Recent(ctx context.Context, status string, by SortBy, limit int) ([]*models.ListingRecord, error)
	Count(ctx context.Context) (int64, error)
}
