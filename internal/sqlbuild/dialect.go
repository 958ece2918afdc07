// Package sqlbuild composes the SQL statements issued by the coding engine.
//
// A Statement is assembled from independent fragments: a head (verb, target,
// SET list, FROM list), base predicates, an optional incremental clause and an
// optional id-range clause. Values are always bound as parameters; the only
// text spliced into SQL is identifiers and expressions owned by the program.
//
// Dialect hides the differences between the supported backends (Postgres,
// SQLite, SQL Server): placeholder syntax, identifier quoting, the shape of an
// UPDATE that joins other tables, and a handful of scalar functions.
package sqlbuild

import (
	"strings"
)

// Dialect renders backend-specific SQL fragments.
type Dialect interface {
	// Name is the storage kind the dialect belongs to (e.g. "postgres").
	Name() string

	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string

	// Ident quotes a single identifier segment.
	Ident(name string) string

	// TempTable returns the quoted name used to create and reference a
	// session-scoped temporary table.
	TempTable(name string) string

	// UpdateHead renders "UPDATE ... SET ... [FROM ...]" for a target table
	// aliased as alias, joined (comma style) with the given sources.
	UpdateHead(table, alias string, set []string, from []string) string

	// Distinct renders a null-safe inequality between two expressions.
	Distinct(a, b string) string

	// Length renders the character length of expr.
	Length(expr string) string

	// SubstrFrom renders the suffix of expr starting at the 1-based position
	// given by the start expression.
	SubstrFrom(expr, start string) string

	// ColumnType maps a logical type ("int", "text", "timestamp") to a SQL type.
	ColumnType(kind string) string

	// CreateTable renders a CREATE TABLE statement for the quoted name and the
	// already rendered column list. Permanent tables are created only when
	// missing; temporary tables are always created fresh.
	CreateTable(name, body string, temp bool) string

	// DropTable renders a DROP TABLE IF EXISTS for the quoted name.
	DropTable(name string) string
}

// FQN quotes a possibly schema-qualified name like "ad.study_topics" segment
// by segment. Empty segments are skipped, so ".t" and "t" render the same.
func FQN(d Dialect, name string) string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, d.Ident(p))
		}
	}
	return strings.Join(out, ".")
}

// Qualify joins a schema and a table name with a dot. An empty schema yields
// the bare table name.
func Qualify(schema, table string) string {
	if strings.TrimSpace(schema) == "" {
		return table
	}
	return schema + "." + table
}

// ForKind returns the dialect registered for a storage kind, or nil.
func ForKind(kind string) Dialect {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "postgres":
		return Postgres{}
	case "sqlite":
		return SQLite{}
	case "mssql":
		return MSSQL{}
	default:
		return nil
	}
}

// mapType is shared by the dialects; each one substitutes its own spelling for
// integers and timestamps.
func mapType(kind, integer, timestamp string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "int", "integer", "bigint":
		return integer
	case "timestamp", "timestamptz", "datetime":
		return timestamp
	default:
		return "TEXT"
	}
}

func quoteWith(open, close, id string) string {
	return open + strings.ReplaceAll(id, close, close+close) + close
}
