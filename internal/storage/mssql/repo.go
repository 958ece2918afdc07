// Package mssql implements storage.Store for Microsoft SQL Server using
// go-mssqldb through database/sql.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"coder/internal/sqlbuild"
	"coder/internal/storage/sqldb"
)

// Config holds MSSQL store configuration.
type Config struct {
	DSN string
}

// NewStore constructs a store and returns a close function for cleanup.
func NewStore(ctx context.Context, cfg Config) (*sqldb.Store, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	s := sqldb.New(db, sqlbuild.MSSQL{})
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return s, s.Close, nil
}

// lostSession reports errors after which the connection is unusable: a broken
// TDS stream, a server-side abort, or any error of severity 20 or above, which
// SQL Server answers by closing the connection.
func lostSession(err error) bool {
	var (
		stream mssql.StreamError
		server mssql.ServerError
		sqlErr mssql.Error
	)
	switch {
	case errors.As(err, &stream), errors.As(err, &server):
		return true
	case errors.As(err, &sqlErr):
		return sqlErr.Class >= 20
	default:
		return false
	}
}
