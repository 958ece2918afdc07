package postgres

import (
	"context"
	"fmt"
	"strings"

	"coder/internal/ddl"
	"coder/internal/sqlbuild"
	"coder/internal/storage"
)

// newStore is a test hook that points to NewStore by default.
var newStore = NewStore

// wrappedStore provides a Close method that calls the close function
// returned by NewStore.
type wrappedStore struct {
	*Store
	closeFn func()
}

var _ storage.Store = (*wrappedStore)(nil)

func (w *wrappedStore) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		s, closeFn, err := newStore(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedStore{Store: s, closeFn: closeFn}, nil
	})

	storage.RegisterFatal(lostSession)

	// Permanent tables may live in a schema that does not exist yet.
	storage.RegisterDDL("postgres", func(ctx context.Context, s storage.Store, t ddl.TableDef) error {
		if schema, _, ok := strings.Cut(t.FQN, "."); ok && !t.Temp {
			q := sqlbuild.Query{SQL: "CREATE SCHEMA IF NOT EXISTS " + s.Dialect().Ident(schema)}
			if _, err := s.Exec(ctx, q); err != nil {
				return fmt.Errorf("create schema %s: %w", schema, err)
			}
		}
		return storage.CreateTable(ctx, s, t)
	})
}
