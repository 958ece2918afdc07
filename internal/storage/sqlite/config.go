// Package sqlite implements a SQLite-backed storage.Store using the pure-Go
// modernc.org/sqlite driver.
package sqlite

// Config holds SQLite store configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:coder.db?_pragma=busy_timeout(5000)"
	//   ":memory:"
	DSN string
}
