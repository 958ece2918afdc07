package anomaly

import (
	"context"
	"fmt"

	"coder/internal/batch"
	"coder/internal/coding"
	"coder/internal/sqlbuild"
)

// Collapser removes post-match duplicates: rows sharing (parent, resolved)
// keep only the row with the smallest id.
type Collapser struct {
	exec *batch.Executor
}

// NewCollapser returns a collapser running through exec.
func NewCollapser(exec *batch.Executor) *Collapser {
	return &Collapser{exec: exec}
}

// Apply deletes duplicates in tbl window by window. When touched is non-nil
// only groups containing at least one touched id are considered. Running it
// twice in a row deletes nothing the second time.
func (c *Collapser) Apply(ctx context.Context, tbl coding.Table, touched *Scratch, size int64) (int64, error) {
	stmt, err := CollapseStatement(c.exec.Store().Dialect(), tbl, touched)
	if err != nil {
		return 0, err
	}
	rep, err := c.exec.RunOnTable(ctx, stmt, tbl.FQN, size, "removed duplicate codes from "+tbl.Name)
	return rep.Total, err
}

// CollapseStatement renders the delete. The window predicate applies to the
// outer id, i.e. to the rows being removed.
func CollapseStatement(d sqlbuild.Dialect, tbl coding.Table, touched *Scratch) (sqlbuild.Statement, error) {
	if tbl.Parent == "" {
		return sqlbuild.Statement{}, fmt.Errorf("collapse: %s has no parent key column", tbl.Name)
	}
	p, r := tbl.Parent, tbl.Resolved

	dup := "SELECT x.id FROM " + tbl.FQN + " x WHERE x." + r + " IS NOT NULL" +
		" AND EXISTS (SELECT 1 FROM " + tbl.FQN + " k WHERE k." + p + " = x." + p +
		" AND k." + r + " = x." + r + " AND k.id < x.id)"
	if touched != nil {
		dup += " AND EXISTS (SELECT 1 FROM " + tbl.FQN + " g JOIN " + touched.FQN() + " s ON s.id = g.id" +
			" WHERE g." + p + " = x." + p + " AND g." + r + " = x." + r + ")"
	}
	return sqlbuild.Delete(d, tbl.FQN).Where("id IN (" + dup + ")"), nil
}
