package listings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/rexsync/internal/common"
	"github.com/dmitrijs2005/rexsync/internal/dbx"
	"github.com/dmitrijs2005/rexsync/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresRepository implements listing storage over a dbx.DBTX.
type PostgresRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

const pgColumns = `id, uid, listing_id, listing_status, listing_details, publish_date, sold_date, created_at, updated_at`

// GetByID returns the record with internal id.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.ListingRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+pgColumns+` FROM listings WHERE id = $1`, id)
	return scanPostgresOne(row)
}

// GetByExternalID returns the record for a REX listing id.
func (r *PostgresRepository) GetByExternalID(ctx context.Context, externalID int64) (*models.ListingRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+pgColumns+` FROM listings WHERE listing_id = $1`, externalID)
	return scanPostgresOne(row)
}

// Create inserts rec and fills in its id and timestamps.
func (r *PostgresRepository) Create(ctx context.Context, rec *models.ListingRecord) error {
	now := r.now().UTC()
	query := `
		INSERT INTO listings (uid, listing_id, listing_status, listing_details, publish_date, sold_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		rec.UID, rec.ExternalID, rec.Status, rec.Details,
		nullTime(rec.PublishedAt), nullTime(rec.SoldAt), now, now,
	).Scan(&rec.ID)
	if err != nil {
		if isPgUniqueViolation(err) {
			return fmt.Errorf("listing %d: %w", rec.ExternalID, common.ErrDuplicate)
		}
		return fmt.Errorf("db error: %w", err)
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

// Update overwrites the mutable columns of the record with rec.ID.
func (r *PostgresRepository) Update(ctx context.Context, rec *models.ListingRecord) error {
	now := r.now().UTC()
	query := `
		UPDATE listings
		   SET listing_id = $1, listing_status = $2, listing_details = $3,
		       publish_date = $4, sold_date = $5, updated_at = $6
		 WHERE id = $7`
	res, err := r.db.ExecContext(ctx, query,
		rec.ExternalID, rec.Status, rec.Details,
		nullTime(rec.PublishedAt), nullTime(rec.SoldAt), now, rec.ID)
	if err != nil {
		if isPgUniqueViolation(err) {
			return fmt.Errorf("listing %d: %w", rec.ExternalID, common.ErrDuplicate)
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("listing record %d: %w", rec.ID, common.ErrorNotFound)
	}
	rec.UpdatedAt = now
	return nil
}

// List returns all records, or those with the given status.
func (r *PostgresRepository) List(ctx context.Context, status string) ([]*models.ListingRecord, error) {
	if status == "" {
		return r.query(ctx, `SELECT `+pgColumns+` FROM listings ORDER BY id`)
	}
	return r.query(ctx, `SELECT `+pgColumns+` FROM listings WHERE listing_status = $1 ORDER BY id`, status)
}

// Recent returns up to limit records with status, newest date first.
func (r *PostgresRepository) Recent(ctx context.Context, status string, by SortBy, limit int) ([]*models.ListingRecord, error) {
	query := `SELECT ` + pgColumns + ` FROM listings WHERE listing_status = $1 ORDER BY ` +
		by.column() + ` DESC NULLS LAST, id DESC LIMIT $2`
	return r.query(ctx, query, status, limit)
}

// Count returns the number of stored records.
func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*models.ListingRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select listings: %w", err)
	}
	defer rows.Close()

	var result []*models.ListingRecord
	for rows.Next() {
		rec, err := scanPostgres(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing row: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate listing rows: %w", err)
	}
	return result, nil
}

func scanPostgresOne(row scanner) (*models.ListingRecord, error) {
	rec, err := scanPostgres(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func scanPostgres(row scanner) (*models.ListingRecord, error) {
	var (
		rec             models.ListingRecord
		published, sold sql.NullTime
	)
	if err := row.Scan(&rec.ID, &rec.UID, &rec.ExternalID, &rec.Status, &rec.Details,
		&published, &sold, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if published.Valid {
		t := published.Time.UTC()
		rec.PublishedAt = &t
	}
	if sold.Valid {
		t := sold.Time.UTC()
		rec.SoldAt = &t
	}
	return &rec, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolation
}
