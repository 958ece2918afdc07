package sqlite

import (
	"context"

	"coder/internal/storage"
	"coder/internal/storage/sqldb"
)

// newStore is a test hook that points to NewStore by default.
var newStore = NewStore

// wrappedStore adds the close function returned by NewStore.
type wrappedStore struct {
	*sqldb.Store
	closeFn func()
}

func (w *wrappedStore) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

var _ storage.Store = (*wrappedStore)(nil)

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		s, closeFn, err := newStore(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedStore{Store: s, closeFn: closeFn}, nil
	})

	storage.RegisterFatal(lostSession)
}
