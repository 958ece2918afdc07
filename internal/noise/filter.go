package noise

import (
	"context"

	"coder/internal/batch"
	"coder/internal/coding"
	"coder/internal/sqlbuild"
)

// Filter deletes denylisted rows from target tables.
type Filter struct {
	exec *batch.Executor
	mode coding.Mode
}

// NewFilter returns a filter running through exec. In incremental mode only
// uncoded rows are eligible.
func NewFilter(exec *batch.Executor, mode coding.Mode) *Filter {
	return &Filter{exec: exec, mode: mode}
}

// Apply deletes rows of tbl whose folded raw value is in list, one group at a
// time, and returns the number of deleted rows. Only fatal storage errors are
// returned; failed batches are logged by the executor.
func (f *Filter) Apply(ctx context.Context, tbl coding.Table, list *Denylist, size int64) (int64, error) {
	d := f.exec.Store().Dialect()
	key := "lower(trim(" + tbl.Raw + "))"

	var total int64
	for _, g := range list.Groups() {
		args := make([]any, len(g.Values))
		for i, v := range g.Values {
			args[i] = v
		}
		stmt := sqlbuild.Delete(d, tbl.FQN).
			Where(sqlbuild.In(key, len(g.Values)), args...).
			Incremental(coding.CodedOnColumn, f.mode.IncrementalOnly())

		rep, err := f.exec.RunOnTable(ctx, stmt, tbl.FQN, size, "deleted "+g.Name+" noise from "+tbl.Name)
		total += rep.Total
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
