package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"coder/internal/sqlbuild"
	"coder/internal/storage"
	"coder/internal/storage/sqldb"
)

// TestSQLiteStorageRegistrationUsesNewStoreHook verifies that the "sqlite"
// backend registered in init() uses the newStore hook and that wrappedStore
// delegates Close.
func TestSQLiteStorageRegistrationUsesNewStoreHook(t *testing.T) {
	ctx := context.Background()

	orig := newStore
	defer func() { newStore = orig }()

	var (
		called bool
		gotCfg Config
		closed bool
	)
	fake := &sqldb.Store{}

	newStore = func(ctx context.Context, cfg Config) (*sqldb.Store, func(), error) {
		called = true
		gotCfg = cfg
		return fake, func() { closed = true }, nil
	}

	cfg := storage.Config{Kind: "sqlite", DSN: "file:test.db?mode=memory"}
	s, err := storage.New(ctx, cfg)
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	if !called {
		t.Fatalf("newStore hook was not called")
	}
	if gotCfg.DSN != cfg.DSN {
		t.Errorf("hook cfg.DSN = %q, want %q", gotCfg.DSN, cfg.DSN)
	}
	w, ok := s.(*wrappedStore)
	if !ok {
		t.Fatalf("storage.New() type = %T, want *wrappedStore", s)
	}
	if w.Store != fake {
		t.Fatalf("wrappedStore.Store = %p, want %p", w.Store, fake)
	}

	s.Close()
	if !closed {
		t.Fatalf("Close() did not invoke closeFn")
	}
}

func TestNewStore_MemoryRoundTrip(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := NewStore(ctx, Config{DSN: ":memory:"})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer closeFn()

	if s.Dialect().Name() != "sqlite" {
		t.Fatalf("dialect = %s", s.Dialect().Name())
	}

	// temp tables must survive across statements on the pinned connection
	if _, err := s.Exec(ctx, sqlbuild.Query{SQL: `CREATE TEMP TABLE "ids" (id INTEGER)`}); err != nil {
		t.Fatalf("create: %v", err)
	}
	n, err := s.Exec(ctx, sqlbuild.Query{SQL: `INSERT INTO "ids" (id) VALUES (?), (?)`, Args: []any{1, 2}})
	if err != nil || n != 2 {
		t.Fatalf("insert: n=%d err=%v", n, err)
	}
	var count int64
	if err := s.QueryRow(ctx, sqlbuild.Query{SQL: `SELECT COUNT(*) FROM "ids"`}, &count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestNewStore_EmptyDSN(t *testing.T) {
	if _, _, err := NewStore(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}

func TestLostSessionIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.db")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 4096)), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var n int64
	err = db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM sqlite_master").Scan(&n)
	if err == nil {
		t.Fatalf("expected an error reading a file that is not a database")
	}
	if !storage.Fatal(err) {
		t.Fatalf("Fatal(%v) = false, want true", err)
	}

	s, closeFn, err := NewStore(context.Background(), Config{DSN: ":memory:"})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer closeFn()
	_, err = s.Exec(context.Background(), sqlbuild.Query{SQL: "SELECT * FROM missing"})
	if err == nil || storage.Fatal(err) {
		t.Fatalf("missing table: err=%v fatal=%v, want a non-fatal error", err, storage.Fatal(err))
	}
}
