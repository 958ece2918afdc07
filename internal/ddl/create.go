// Package ddl defines a small, backend-agnostic model for the tables the
// engine owns (the unmatched-value aggregate and per-run scratch tables) and
// renders CREATE TABLE statements for them through a sqlbuild.Dialect.
package ddl

import (
	"fmt"
	"strings"

	"coder/internal/sqlbuild"
)

// BuildCreateTableSQL renders a CREATE TABLE statement for t in dialect d.
//
// Rules:
//   - t.FQN must be non-empty.
//   - Each column must have a non-empty Name and Type.
//   - Primary-key columns are always rendered NOT NULL.
//   - Permanent tables are created only when missing; temporary tables are
//     always created fresh and live for the session.
func BuildCreateTableSQL(d sqlbuild.Dialect, t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		if strings.TrimSpace(c.Type) == "" {
			return "", fmt.Errorf("ddl: column %s missing Type", name)
		}

		var sb strings.Builder
		sb.WriteString(d.Ident(name))
		sb.WriteByte(' ')
		sb.WriteString(d.ColumnType(c.Type))
		if !c.Nullable || c.PrimaryKey {
			sb.WriteString(" NOT NULL")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.Ident(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, "PRIMARY KEY ("+strings.Join(pks, ", ")+")")
	}

	name := sqlbuild.FQN(d, fqn)
	if t.Temp {
		name = d.TempTable(fqn)
	}
	return d.CreateTable(name, strings.Join(cols, ", "), t.Temp), nil
}

// AggregateTable is the central store of still-unmatched raw values, keyed by
// (source_id, table_name, raw_value).
func AggregateTable(fqn string) TableDef {
	return TableDef{
		FQN: fqn,
		Columns: []ColumnDef{
			{Name: "source_id", Type: "int"},
			{Name: "table_name", Type: "text"},
			{Name: "raw_value", Type: "text"},
			{Name: "value_count", Type: "int"},
		},
	}
}

// IDSet is a single-column temporary table of row ids.
func IDSet(name string) TableDef {
	return TableDef{
		FQN:     name,
		Temp:    true,
		Columns: []ColumnDef{{Name: "id", Type: "int", PrimaryKey: true}},
	}
}

// PartialCounts is the temporary table holding per-window unmatched counts
// before they are merged.
func PartialCounts(name string) TableDef {
	return TableDef{
		FQN:  name,
		Temp: true,
		Columns: []ColumnDef{
			{Name: "raw_value", Type: "text"},
			{Name: "value_count", Type: "int"},
		},
	}
}
