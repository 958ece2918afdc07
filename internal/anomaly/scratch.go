package anomaly

import (
	"context"
	"fmt"

	"github.com/zeebo/xxh3"

	"coder/internal/coding"
	"coder/internal/ddl"
	"coder/internal/sqlbuild"
	"coder/internal/storage"
)

// Scratch is a session-scoped temporary set of row ids touched by the
// current run. Its name is derived from the target table, so each table gets
// its own set and a re-run in the same session replaces it.
type Scratch struct {
	store storage.Store
	name  string
	fqn   string
}

// ScratchName is the temporary table name used for tbl.
func ScratchName(tbl coding.Table) string {
	return fmt.Sprintf("tmp_ids_%016x", xxh3.HashString(tbl.FQN))
}

// NewScratch (re)creates the id set for tbl.
func NewScratch(ctx context.Context, s storage.Store, tbl coding.Table) (*Scratch, error) {
	d := s.Dialect()
	name := ScratchName(tbl)
	sc := &Scratch{store: s, name: name, fqn: d.TempTable(name)}

	if _, err := s.Exec(ctx, sqlbuild.Query{SQL: d.DropTable(sc.fqn)}); err != nil {
		return nil, fmt.Errorf("drop scratch %s: %w", name, err)
	}
	if err := storage.CreateTable(ctx, s, ddl.IDSet(name)); err != nil {
		return nil, err
	}
	return sc, nil
}

// FQN is the quoted name of the temporary table.
func (sc *Scratch) FQN() string { return sc.fqn }

// Snapshot records the ids of rows still uncoded and returns the table's
// current max id (0 for an empty table). Rows created later with larger ids
// are added with AddAbove.
func (sc *Scratch) Snapshot(ctx context.Context, tbl coding.Table) (int64, error) {
	q := sqlbuild.Query{SQL: "INSERT INTO " + sc.fqn + " (id) SELECT id FROM " + tbl.FQN +
		" WHERE " + coding.CodedOnColumn + " IS NULL"}
	if _, err := sc.store.Exec(ctx, q); err != nil {
		return 0, fmt.Errorf("snapshot uncoded ids of %s: %w", tbl.Name, err)
	}
	var max int64
	q = sqlbuild.Query{SQL: "SELECT COALESCE(MAX(id), 0) FROM " + tbl.FQN}
	if err := sc.store.QueryRow(ctx, q, &max); err != nil {
		return 0, fmt.Errorf("max id of %s: %w", tbl.Name, err)
	}
	return max, nil
}

// AddAbove adds every id greater than after, i.e. rows inserted by this run.
func (sc *Scratch) AddAbove(ctx context.Context, tbl coding.Table, after int64) (int64, error) {
	q := sqlbuild.Query{
		SQL:  sqlbuild.Bind(sc.store.Dialect(), "INSERT INTO "+sc.fqn+" (id) SELECT id FROM "+tbl.FQN+" WHERE id > ?"),
		Args: []any{after},
	}
	n, err := sc.store.Exec(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("record new ids of %s: %w", tbl.Name, err)
	}
	return n, nil
}

// Drop removes the temporary table.
func (sc *Scratch) Drop(ctx context.Context) error {
	_, err := sc.store.Exec(ctx, sqlbuild.Query{SQL: sc.store.Dialect().DropTable(sc.fqn)})
	return err
}
