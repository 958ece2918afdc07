package ddl

// ColumnDef describes a single column of a table the engine creates itself.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - Type: logical type ("int", "text", "timestamp"), mapped by the dialect
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression (e.g. 0, CURRENT_TIMESTAMP)
type ColumnDef struct {
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the table name and an ordered list of columns. FQN is in
// dotted form ("schema.table") for permanent tables and a bare name for
// temporary ones.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
	Temp    bool
}
