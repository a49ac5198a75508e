package listings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/rexsync/internal/common"
	"github.com/dmitrijs2005/rexsync/internal/dbx"
	"github.com/dmitrijs2005/rexsync/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository keeps dates as unix seconds.
type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const sqliteColumns = `id, uid, listing_id, listing_status, listing_details, publish_date, sold_date, created_at, updated_at`

func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*models.ListingRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM listings WHERE id = ?`, id)
	return r.scanOne(row)
}

func (r *SQLiteRepository) GetByExternalID(ctx context.Context, externalID int64) (*models.ListingRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM listings WHERE listing_id = ?`, externalID)
	return r.scanOne(row)
}

func (r *SQLiteRepository) Create(ctx context.Context, rec *models.ListingRecord) error {
	now := r.now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO listings (uid, listing_id, listing_status, listing_details, publish_date, sold_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UID, rec.ExternalID, rec.Status, rec.Details,
		unixOrNil(rec.PublishedAt), unixOrNil(rec.SoldAt), now.Unix(), now.Unix())
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return fmt.Errorf("listing %d: %w", rec.ExternalID, common.ErrDuplicate)
		}
		return fmt.Errorf("db error: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, rec *models.ListingRecord) error {
	now := r.now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx, `
		UPDATE listings
		   SET listing_id = ?, listing_status = ?, listing_details = ?,
		       publish_date = ?, sold_date = ?, updated_at = ?
		 WHERE id = ?`,
		rec.ExternalID, rec.Status, rec.Details,
		unixOrNil(rec.PublishedAt), unixOrNil(rec.SoldAt), now.Unix(), rec.ID)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
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

func (r *SQLiteRepository) List(ctx context.Context, status string) ([]*models.ListingRecord, error) {
	query := `SELECT ` + sqliteColumns + ` FROM listings`
	var args []any
	if status != "" {
		query += ` WHERE listing_status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id`
	return r.query(ctx, query, args...)
}

func (r *SQLiteRepository) Recent(ctx context.Context, status string, by SortBy, limit int) ([]*models.ListingRecord, error) {
	// NULL dates sort last under DESC in SQLite.
	query := `SELECT ` + sqliteColumns + ` FROM listings WHERE listing_status = ? ORDER BY ` +
		by.column() + ` DESC, id DESC LIMIT ?`
	return r.query(ctx, query, status, limit)
}

func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scanOne(row scanner) (*models.ListingRecord, error) {
	rec, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.ListingRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select listings: %w", err)
	}
	defer rows.Close()

	var result []*models.ListingRecord
	for rows.Next() {
		rec, err := scanSQLite(rows)
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

func scanSQLite(row scanner) (*models.ListingRecord, error) {
	var (
		rec                models.ListingRecord
		published, sold    sql.NullInt64
		createdAt, updated int64
	)
	if err := row.Scan(&rec.ID, &rec.UID, &rec.ExternalID, &rec.Status, &rec.Details,
		&published, &sold, &createdAt, &updated); err != nil {
		return nil, err
	}
	rec.PublishedAt = fromUnix(published)
	rec.SoldAt = fromUnix(sold)
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updated, 0).UTC()
	return &rec, nil
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func fromUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func isSQLiteUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}
