package sqlbuild

import (
	"fmt"
	"strings"
)

// Postgres renders SQL for PostgreSQL via pgx.
type Postgres struct{}

func (Postgres) Name() string             { return "postgres" }
func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }
func (Postgres) Ident(name string) string { return quoteWith(`"`, `"`, name) }
func (p Postgres) TempTable(name string) string {
	return p.Ident(name)
}

func (Postgres) UpdateHead(table, alias string, set []string, from []string) string {
	return joinUpdate(table, alias, set, from)
}

func (Postgres) Distinct(a, b string) string { return a + " IS DISTINCT FROM " + b }
func (Postgres) Length(expr string) string    { return "length(" + expr + ")" }
func (Postgres) SubstrFrom(expr, start string) string {
	return "substr(" + expr + ", " + start + ")"
}
func (Postgres) ColumnType(kind string) string { return mapType(kind, "BIGINT", "TIMESTAMPTZ") }

func (Postgres) CreateTable(name, body string, temp bool) string {
	if temp {
		return "CREATE TEMP TABLE " + name + " (" + body + ")"
	}
	return "CREATE TABLE IF NOT EXISTS " + name + " (" + body + ")"
}

func (Postgres) DropTable(name string) string { return "DROP TABLE IF EXISTS " + name }

// SQLite renders SQL for modernc.org/sqlite. UPDATE ... FROM requires SQLite
// 3.33 and CONCAT requires 3.44; the bundled library is newer than both.
type SQLite struct{}

func (SQLite) Name() string             { return "sqlite" }
func (SQLite) Placeholder(int) string   { return "?" }
func (SQLite) Ident(name string) string { return quoteWith(`"`, `"`, name) }
func (s SQLite) TempTable(name string) string {
	return s.Ident(name)
}

func (SQLite) UpdateHead(table, alias string, set []string, from []string) string {
	return joinUpdate(table, alias, set, from)
}

func (SQLite) Distinct(a, b string) string { return a + " IS NOT " + b }
func (SQLite) Length(expr string) string    { return "length(" + expr + ")" }
func (SQLite) SubstrFrom(expr, start string) string {
	return "substr(" + expr + ", " + start + ")"
}
func (SQLite) ColumnType(kind string) string { return mapType(kind, "INTEGER", "TEXT") }

func (SQLite) CreateTable(name, body string, temp bool) string {
	if temp {
		return "CREATE TEMP TABLE " + name + " (" + body + ")"
	}
	return "CREATE TABLE IF NOT EXISTS " + name + " (" + body + ")"
}

func (SQLite) DropTable(name string) string { return "DROP TABLE IF EXISTS " + name }

// MSSQL renders SQL for Microsoft SQL Server (2017 or later for TRIM and
// CONCAT, 2016 or later for DROP TABLE IF EXISTS).
type MSSQL struct{}

func (MSSQL) Name() string             { return "mssql" }
func (MSSQL) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }
func (MSSQL) Ident(name string) string { return quoteWith("[", "]", name) }
func (m MSSQL) TempTable(name string) string {
	return m.Ident("#" + name)
}

// UpdateHead uses the T-SQL form where the alias is updated and the target
// table appears in the FROM list.
func (MSSQL) UpdateHead(table, alias string, set []string, from []string) string {
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(alias)
	b.WriteString(" SET ")
	b.WriteString(strings.Join(set, ", "))
	b.WriteString(" FROM ")
	b.WriteString(table)
	b.WriteString(" AS ")
	b.WriteString(alias)
	for _, f := range from {
		b.WriteString(", ")
		b.WriteString(f)
	}
	return b.String()
}

func (MSSQL) Distinct(a, b string) string {
	return fmt.Sprintf("(%[1]s <> %[2]s OR (%[1]s IS NULL AND %[2]s IS NOT NULL) OR (%[1]s IS NOT NULL AND %[2]s IS NULL))", a, b)
}

// Length uses LEN, which ignores trailing blanks. Callers trim first.
func (MSSQL) Length(expr string) string { return "LEN(" + expr + ")" }
func (MSSQL) SubstrFrom(expr, start string) string {
	return "SUBSTRING(" + expr + ", " + start + ", LEN(" + expr + "))"
}
func (MSSQL) ColumnType(kind string) string {
	t := mapType(kind, "BIGINT", "DATETIME2")
	if t == "TEXT" {
		return "NVARCHAR(4000)"
	}
	return t
}

func (MSSQL) CreateTable(name, body string, temp bool) string {
	if temp {
		return "CREATE TABLE " + name + " (" + body + ")"
	}
	return "IF OBJECT_ID(N'" + strings.ReplaceAll(unbracket(name), "'", "''") + "', N'U') IS NULL CREATE TABLE " + name + " (" + body + ")"
}

func (MSSQL) DropTable(name string) string { return "DROP TABLE IF EXISTS " + name }

func unbracket(name string) string {
	return strings.NewReplacer("[", "", "]", "").Replace(name)
}

func joinUpdate(table, alias string, set []string, from []string) string {
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(table)
	b.WriteString(" AS ")
	b.WriteString(alias)
	b.WriteString(" SET ")
	b.WriteString(strings.Join(set, ", "))
	if len(from) > 0 {
		b.WriteString(" FROM ")
		b.WriteString(strings.Join(from, ", "))
	}
	return b.String()
}
