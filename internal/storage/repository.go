// Package storage defines the backend-agnostic contract the coding engine uses
// to talk to the relational store, plus a small factory registry that concrete
// backends (postgres, sqlite, mssql) plug into from their init functions.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"coder/internal/sqlbuild"
)

// ErrNoRows is returned by QueryRow when the query produced no row.
var ErrNoRows = errors.New("storage: no rows in result set")

// Scanner reads the current row of a result set.
type Scanner interface {
	Scan(dest ...any) error
}

// Execer runs statements. Inside InTx it is bound to the transaction.
type Execer interface {
	// Exec runs a mutation and returns the number of affected rows.
	Exec(ctx context.Context, q sqlbuild.Query) (int64, error)

	// QueryRow scans the first row of the result into dest.
	QueryRow(ctx context.Context, q sqlbuild.Query, dest ...any) error

	// Query calls each once per result row.
	Query(ctx context.Context, q sqlbuild.Query, each func(Scanner) error) error
}

// Store is a single logical connection to the target database. All calls go
// through one session so temporary tables created by one statement are visible
// to the next.
type Store interface {
	Execer

	Dialect() sqlbuild.Dialect

	// InTx runs fn in a transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(Execer) error) error

	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
}

// Factory opens a Store for a backend kind.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Store using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Store, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns a sorted snapshot of registered kinds.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
