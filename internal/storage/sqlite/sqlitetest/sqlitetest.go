// Package sqlitetest opens throwaway in-memory SQLite stores for tests of the
// coding engine.
package sqlitetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"coder/internal/sqlbuild"
	"coder/internal/storage"
	"coder/internal/storage/sqlite"
)

// New returns an in-memory store closed at test cleanup.
func New(tb testing.TB) storage.Store {
	tb.Helper()
	s, closeFn, err := sqlite.NewStore(context.Background(), sqlite.Config{DSN: ":memory:"})
	require.NoError(tb, err)
	tb.Cleanup(closeFn)
	return s
}

// Exec runs each statement and fails the test on error.
func Exec(tb testing.TB, s storage.Store, stmts ...string) {
	tb.Helper()
	for _, stmt := range stmts {
		_, err := s.Exec(context.Background(), sqlbuild.Query{SQL: stmt})
		require.NoError(tb, err, stmt)
	}
}

// Int runs a single-value query and returns the result.
func Int(tb testing.TB, s storage.Store, query string, args ...any) int64 {
	tb.Helper()
	var n int64
	require.NoError(tb, s.QueryRow(context.Background(), sqlbuild.Query{SQL: query, Args: args}, &n), query)
	return n
}

// Strings collects the first column of every row.
func Strings(tb testing.TB, s storage.Store, query string, args ...any) []string {
	tb.Helper()
	var out []string
	err := s.Query(context.Background(), sqlbuild.Query{SQL: query, Args: args}, func(sc storage.Scanner) error {
		var v *string
		if err := sc.Scan(&v); err != nil {
			return err
		}
		if v == nil {
			out = append(out, "<nil>")
		} else {
			out = append(out, *v)
		}
		return nil
	})
	require.NoError(tb, err, query)
	return out
}
