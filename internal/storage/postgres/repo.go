// Package postgres implements storage.Store for PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"coder/internal/sqlbuild"
	"coder/internal/storage"
)

// Config holds Postgres store configuration.
type Config struct {
	DSN string // connection string for pgxpool
}

// Store is a Postgres-backed storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store and returns a close function for cleanup.
//
// The pool holds exactly one long-lived connection so that temporary tables
// created by the engine stay visible for the whole run.
func NewStore(ctx context.Context, cfg Config) (*Store, func(), error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool config: %w", err)
	}
	pc.MaxConns = 1
	pc.MinConns = 1
	pc.MaxConnLifetime = 24 * time.Hour
	pc.MaxConnIdleTime = 24 * time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, pool.Close, nil
}

func (s *Store) Dialect() sqlbuild.Dialect { return sqlbuild.Postgres{} }

func (s *Store) Exec(ctx context.Context, q sqlbuild.Query) (int64, error) {
	return execOn(ctx, s.pool, q)
}

func (s *Store) QueryRow(ctx context.Context, q sqlbuild.Query, dest ...any) error {
	return queryRowOn(ctx, s.pool, q, dest)
}

func (s *Store) Query(ctx context.Context, q sqlbuild.Query, each func(storage.Scanner) error) error {
	return queryOn(ctx, s.pool, q, each)
}

func (s *Store) InTx(ctx context.Context, fn func(storage.Execer) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(txExecer{tx: tx})
	})
}

// Close is a no-op; the adapter calls the close function from NewStore.
func (s *Store) Close() {}

type txExecer struct{ tx pgx.Tx }

func (t txExecer) Exec(ctx context.Context, q sqlbuild.Query) (int64, error) {
	return execOn(ctx, t.tx, q)
}

func (t txExecer) QueryRow(ctx context.Context, q sqlbuild.Query, dest ...any) error {
	return queryRowOn(ctx, t.tx, q, dest)
}

func (t txExecer) Query(ctx context.Context, q sqlbuild.Query, each func(storage.Scanner) error) error {
	return queryOn(ctx, t.tx, q, each)
}

// querier is the subset of *pgxpool.Pool and pgx.Tx used here.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func execOn(ctx context.Context, q querier, query sqlbuild.Query) (int64, error) {
	tag, err := q.Exec(ctx, query.SQL, query.Args...)
	if err != nil {
		return 0, wrapPgErr(err)
	}
	return tag.RowsAffected(), nil
}

func queryRowOn(ctx context.Context, q querier, query sqlbuild.Query, dest []any) error {
	err := q.QueryRow(ctx, query.SQL, query.Args...).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNoRows
	}
	return wrapPgErr(err)
}

func queryOn(ctx context.Context, q querier, query sqlbuild.Query, each func(storage.Scanner) error) error {
	rows, err := q.Query(ctx, query.SQL, query.Args...)
	if err != nil {
		return wrapPgErr(err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := each(rows); err != nil {
			return err
		}
	}
	return wrapPgErr(rows.Err())
}

// wrapPgErr surfaces the server's detail text, which pgx keeps out of Error().
func wrapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s)", err, pgErr.Detail)
	}
	return err
}

// lostSession classifies connection-level failures.
func lostSession(err error) bool {
	var connErr *pgconn.ConnectError
	return pgconn.Timeout(err) || errors.As(err, &connErr)
}
