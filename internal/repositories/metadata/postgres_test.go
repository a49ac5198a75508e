package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func newPgRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgres_Get(t *testing.T) {
	r, mock := newPgRepo(t)

	mock.ExpectQuery(`SELECT value FROM metadata WHERE key = \$1`).
		WithArgs("rex_auth_token").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte("T1")))

	v, err := r.Get(context.Background(), "rex_auth_token")
	require.NoError(t, err)
	require.Equal(t, []byte("T1"), v)
}

func TestPostgres_GetMissing(t *testing.T) {
	r, mock := newPgRepo(t)

	mock.ExpectQuery(`SELECT value FROM metadata`).
		WithArgs("absent").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	v, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestPostgres_SetUpserts(t *testing.T) {
	r, mock := newPgRepo(t)

	mock.ExpectExec(`INSERT INTO metadata .* ON CONFLICT \(key\) DO UPDATE SET value = EXCLUDED.value`).
		WithArgs("last_sync", []byte("100")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.Set(context.Background(), "last_sync", []byte("100")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Errors(t *testing.T) {
	r, mock := newPgRepo(t)

	mock.ExpectExec(`INSERT INTO metadata`).WillReturnError(errors.New("down"))
	mock.ExpectExec(`DELETE FROM metadata`).WillReturnError(errors.New("down"))

	require.ErrorContains(t, r.Set(context.Background(), "k", nil), "failed to set metadata[k]")
	require.ErrorContains(t, r.Delete(context.Background(), "k"), "failed to delete metadata[k]")
}
