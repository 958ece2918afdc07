// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it causes the init
// functions of each backend to run, registering their factories, DDL
// bootstrappers and fatal-error classifiers with the storage package.
//
// Available kinds:
//
//   - "postgres" (coder/internal/storage/postgres)
//   - "mssql"    (coder/internal/storage/mssql)
//   - "sqlite"   (coder/internal/storage/sqlite)
package all

import (
	_ "coder/internal/storage/mssql"
	_ "coder/internal/storage/postgres"
	_ "coder/internal/storage/sqlite"
)
