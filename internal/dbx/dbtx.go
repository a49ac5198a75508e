// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// and transaction helpers that let nested callers join the transaction
// already carried by their context.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txKey scopes an ambient transaction to the database that opened it.
type txKey struct {
	db *sql.DB
}

// TxFromContext returns the transaction opened on db that ctx carries, if any.
func TxFromContext(ctx context.Context, db *sql.DB) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{db: db}).(*sql.Tx)
	return tx, ok && tx != nil
}

func contextWithTx(ctx context.Context, db *sql.DB, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{db: db}, tx)
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
// The context handed to fn carries the transaction, so Transactor.InTx calls
// made from inside fn join it instead of opening a new one.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    // use tx instead of db
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(contextWithTx(ctx, db, tx), tx)
	return err
}

// Transactor runs units of work against one database, joining the ambient
// transaction when the context already carries one. Only the call that
// opened a transaction commits or rolls it back.
type Transactor struct {
	db *sql.DB
}

// NewTransactor returns a Transactor bound to db.
func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{db: db}
}

// DB returns the underlying database handle.
func (t *Transactor) DB() *sql.DB {
	return t.db
}

// Conn returns the ambient transaction if ctx carries one, otherwise the database.
func (t *Transactor) Conn(ctx context.Context) DBTX {
	if tx, ok := TxFromContext(ctx, t.db); ok {
		return tx
	}
	return t.db
}

// InTransaction reports whether ctx carries a transaction opened on this database.
func (t *Transactor) InTransaction(ctx context.Context) bool {
	_, ok := TxFromContext(ctx, t.db)
	return ok
}

// InTx runs fn inside the ambient transaction, or inside a new one owned by
// this call. An error returned from fn inside a joined transaction is passed
// back unchanged; the owner decides whether the whole unit rolls back.
func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	if tx, ok := TxFromContext(ctx, t.db); ok {
		return fn(ctx, tx)
	}
	return WithTx(ctx, t.db, nil, fn)
}
