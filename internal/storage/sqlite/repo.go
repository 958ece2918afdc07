package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"coder/internal/sqlbuild"
	"coder/internal/storage/sqldb"
)

// Open opens a SQLite database with the modernc driver.
func Open(dsn string) (*sql.DB, error) {
	return sql.Open("sqlite", dsn)
}

// NewStore opens the database, pings it and returns the store plus a close
// function. Schemas other than main/temp need to be ATTACHed by the DSN's
// owner; the engine normally runs SQLite with empty schema names.
func NewStore(ctx context.Context, cfg Config) (*sqldb.Store, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	s := sqldb.New(db, sqlbuild.SQLite{})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")

	return s, s.Close, nil
}

// lostSession reports errors that leave the database file unusable for the
// rest of the run. Extended result codes keep the primary code in the low byte.
func lostSession(err error) bool {
	var e *sqlitedrv.Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code() & 0xff {
	case sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CANTOPEN:
		return true
	default:
		return false
	}
}
