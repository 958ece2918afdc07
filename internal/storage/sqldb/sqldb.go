// Package sqldb implements storage.Store on top of database/sql. The sqlite
// and mssql backends share it; only the driver and the dialect differ.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"coder/internal/sqlbuild"
	"coder/internal/storage"
)

// Store is a database/sql backed storage.Store.
type Store struct {
	db *sql.DB
	d  sqlbuild.Dialect
}

var _ storage.Store = (*Store)(nil)

// New wraps db. The pool is pinned to a single connection: temporary tables
// are session scoped and must stay visible across statements.
func New(db *sql.DB, d sqlbuild.Dialect) *Store {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)
	return &Store{db: db, d: d}
}

func (s *Store) Dialect() sqlbuild.Dialect { return s.d }

func (s *Store) Exec(ctx context.Context, q sqlbuild.Query) (int64, error) {
	return execOn(ctx, s.db, q)
}

func (s *Store) QueryRow(ctx context.Context, q sqlbuild.Query, dest ...any) error {
	return queryRowOn(ctx, s.db, q, dest)
}

func (s *Store) Query(ctx context.Context, q sqlbuild.Query, each func(storage.Scanner) error) error {
	return queryOn(ctx, s.db, q, each)
}

// InTx runs fn inside a transaction. Because the pool holds one connection,
// fn must only use the Execer it is given.
func (s *Store) InTx(ctx context.Context, fn func(storage.Execer) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(txExecer{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) Close() { _ = s.db.Close() }

type txExecer struct{ tx *sql.Tx }

func (t txExecer) Exec(ctx context.Context, q sqlbuild.Query) (int64, error) {
	return execOn(ctx, t.tx, q)
}

func (t txExecer) QueryRow(ctx context.Context, q sqlbuild.Query, dest ...any) error {
	return queryRowOn(ctx, t.tx, q, dest)
}

func (t txExecer) Query(ctx context.Context, q sqlbuild.Query, each func(storage.Scanner) error) error {
	return queryOn(ctx, t.tx, q, each)
}

// conn is the subset of *sql.DB and *sql.Tx used here.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func execOn(ctx context.Context, c conn, q sqlbuild.Query) (int64, error) {
	res, err := c.ExecContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func queryRowOn(ctx context.Context, c conn, q sqlbuild.Query, dest []any) error {
	err := c.QueryRowContext(ctx, q.SQL, q.Args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNoRows
	}
	return err
}

func queryOn(ctx context.Context, c conn, q sqlbuild.Query, each func(storage.Scanner) error) error {
	rows, err := c.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := each(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
