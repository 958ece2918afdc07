package ddl

import (
	"strings"
	"testing"

	"coder/internal/sqlbuild"
)

// TestBuildCreateTableSQL verifies rendering and validation across dialects.
func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		d           sqlbuild.Dialect
		def         TableDef
		wantSQL     string
		errContains string
	}{
		{
			name:        "empty FQN returns error",
			d:           sqlbuild.Postgres{},
			def:         TableDef{Columns: []ColumnDef{{Name: "id", Type: "int"}}},
			errContains: "table FQN must not be empty",
		},
		{
			name:        "no columns returns error",
			d:           sqlbuild.Postgres{},
			def:         TableDef{FQN: "public.t"},
			errContains: "at least one column is required",
		},
		{
			name:        "column with empty name returns error",
			d:           sqlbuild.SQLite{},
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Type: "int"}}},
			errContains: "column with empty name",
		},
		{
			name:        "column with empty type returns error",
			d:           sqlbuild.SQLite{},
			def:         TableDef{FQN: "t", Columns: []ColumnDef{{Name: "id"}}},
			errContains: "missing Type",
		},
		{
			name:    "postgres aggregate table",
			d:       sqlbuild.Postgres{},
			def:     AggregateTable("mon.unmatched_values"),
			wantSQL: `CREATE TABLE IF NOT EXISTS "mon"."unmatched_values" ("source_id" BIGINT NOT NULL, "table_name" TEXT NOT NULL, "raw_value" TEXT NOT NULL, "value_count" BIGINT NOT NULL)`,
		},
		{
			name:    "sqlite temp id set",
			d:       sqlbuild.SQLite{},
			def:     IDSet("tmp_ids_1"),
			wantSQL: `CREATE TEMP TABLE "tmp_ids_1" ("id" INTEGER NOT NULL, PRIMARY KEY ("id"))`,
		},
		{
			name:    "mssql temp partial counts",
			d:       sqlbuild.MSSQL{},
			def:     PartialCounts("tmp_agg"),
			wantSQL: `CREATE TABLE [#tmp_agg] ([raw_value] NVARCHAR(4000) NOT NULL, [value_count] BIGINT NOT NULL)`,
		},
		{
			name: "nullable column with default",
			d:    sqlbuild.Postgres{},
			def: TableDef{FQN: "t", Columns: []ColumnDef{
				{Name: "n", Type: "int", Nullable: true, Default: "0"},
			}},
			wantSQL: `CREATE TABLE IF NOT EXISTS "t" ("n" BIGINT DEFAULT 0)`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := BuildCreateTableSQL(tt.d, tt.def)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("err = %v, want containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.wantSQL {
				t.Fatalf("SQL mismatch\n got: %s\nwant: %s", got, tt.wantSQL)
			}
		})
	}
}
