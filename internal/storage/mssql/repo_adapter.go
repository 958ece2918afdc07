package mssql

import (
	"context"
	"fmt"
	"strings"

	"coder/internal/ddl"
	"coder/internal/sqlbuild"
	"coder/internal/storage"
	"coder/internal/storage/sqldb"
)

// newStore is a test hook that points to NewStore by default.
var newStore = NewStore

var _ storage.Store = (*wrappedStore)(nil)

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		s, closeFn, err := newStore(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedStore{Store: s, closeFn: closeFn}, nil
	})

	storage.RegisterFatal(lostSession)

	storage.RegisterDDL("mssql", func(ctx context.Context, s storage.Store, t ddl.TableDef) error {
		if schema, _, ok := strings.Cut(t.FQN, "."); ok && !t.Temp {
			if _, err := s.Exec(ctx, sqlbuild.Query{SQL: createSchemaSQL(schema)}); err != nil {
				return fmt.Errorf("create schema %s: %w", schema, err)
			}
		}
		return storage.CreateTable(ctx, s, t)
	})
}

// createSchemaSQL wraps CREATE SCHEMA in EXEC, which T-SQL requires when the
// statement is not the first in its batch.
func createSchemaSQL(schema string) string {
	lit := strings.ReplaceAll(schema, "'", "''")
	ident := strings.ReplaceAll(sqlbuild.MSSQL{}.Ident(schema), "'", "''")
	return "IF SCHEMA_ID(N'" + lit + "') IS NULL EXEC(N'CREATE SCHEMA " + ident + "')"
}

// wrappedStore adds the close function returned by NewStore.
type wrappedStore struct {
	*sqldb.Store
	closeFn func()
}

func (w *wrappedStore) Close() { w.closeFn() }
