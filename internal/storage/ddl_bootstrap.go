package storage

import (
	"context"
	"fmt"
	"sync"

	"coder/internal/ddl"
	"coder/internal/sqlbuild"
)

// DDLBootstrapper applies backend-specific DDL for a table the engine owns,
// e.g. creating the schema first where the backend needs it.
//
// Backends register their implementation for a storage kind at init time.
type DDLBootstrapper func(ctx context.Context, s Store, t ddl.TableDef) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) a DDLBootstrapper for kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable creates t through the bootstrapper registered for the store's
// dialect, or with a plain CREATE TABLE when none is registered.
func EnsureTable(ctx context.Context, s Store, t ddl.TableDef) error {
	kind := s.Dialect().Name()
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if ok {
		return fn(ctx, s, t)
	}
	return CreateTable(ctx, s, t)
}

// CreateTable renders t for the store's dialect and executes it.
func CreateTable(ctx context.Context, s Store, t ddl.TableDef) error {
	stmt, err := ddl.BuildCreateTableSQL(s.Dialect(), t)
	if err != nil {
		return err
	}
	if _, err := s.Exec(ctx, sqlbuild.Query{SQL: stmt}); err != nil {
		return fmt.Errorf("create table %s: %w", t.FQN, err)
	}
	return nil
}
