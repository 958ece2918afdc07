// Package unmatched maintains the central tally of raw values that are still
// unresolved, per source and per target table, for manual curation.
package unmatched

import (
	"context"
	"fmt"

	"github.com/zeebo/xxh3"

	"coder/internal/batch"
	"coder/internal/coding"
	"coder/internal/ddl"
	"coder/internal/sqlbuild"
	"coder/internal/storage"
)

// Result is the state of the aggregate for one (source, table) after a run.
type Result struct {
	Distinct int64 // distinct case-folded raw values
	Total    int64 // rows those values cover
}

// Aggregator rebuilds aggregate rows. The aggregate table is addressed by its
// dotted name (e.g. "mon.unmatched_values").
type Aggregator struct {
	exec  *batch.Executor
	table string
}

// New returns an aggregator writing to the dotted table name.
func New(exec *batch.Executor, table string) *Aggregator {
	return &Aggregator{exec: exec, table: table}
}

// Ensure creates the aggregate table when missing.
func (a *Aggregator) Ensure(ctx context.Context) error {
	return storage.EnsureTable(ctx, a.exec.Store(), ddl.AggregateTable(a.table))
}

// Aggregate replaces the rows for (source, tbl) with fresh counts of the
// unresolved values in tbl. Tables spanning more than one batch window are
// counted window by window into a temporary table, then summed per value, so
// each key appears exactly once. The delete of the previous rows and the
// insert of the new ones commit together.
func (a *Aggregator) Aggregate(ctx context.Context, source int64, tbl coding.Table, size int64) (Result, error) {
	store := a.exec.Store()
	d := store.Dialect()

	min, max, ok, err := a.exec.Bounds(ctx, tbl.FQN)
	if err != nil {
		return Result{}, err
	}

	var fill sqlbuild.Query
	var cleanup func()
	switch {
	case !ok:
		// nothing to count; still clear what a previous run left behind
	case batch.Windows(min, max, size) == nil:
		fill = a.direct(d, source, tbl).Render()
	default:
		tmp, drop, err := a.partials(ctx, source, tbl, min, max, size)
		if err != nil {
			return Result{}, err
		}
		cleanup = drop
		fill = a.merge(d, source, tbl, tmp).Render()
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = store.InTx(ctx, func(tx storage.Execer) error {
		if _, err := tx.Exec(ctx, a.clear(d, source, tbl)); err != nil {
			return fmt.Errorf("clear unmatched values of %s: %w", tbl.Name, err)
		}
		if fill.SQL == "" {
			return nil
		}
		if _, err := tx.Exec(ctx, fill); err != nil {
			return fmt.Errorf("store unmatched values of %s: %w", tbl.Name, err)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	res, err := a.Totals(ctx, source, tbl.Name)
	if err != nil {
		return res, err
	}
	log := a.exec.Log()
	log.Info().
		Int64("source_id", source).
		Str("table", tbl.Name).
		Int64("distinct", res.Distinct).
		Int64("total", res.Total).
		Msgf("%d unmatched values (%d records) stored for %s", res.Distinct, res.Total, tbl.Name)
	return res, nil
}

// Totals reads back the stored counts for (source, table).
func (a *Aggregator) Totals(ctx context.Context, source int64, table string) (Result, error) {
	d := a.exec.Store().Dialect()
	q := sqlbuild.Query{
		SQL: sqlbuild.Bind(d, "SELECT COUNT(*), COALESCE(SUM(value_count), 0) FROM "+sqlbuild.FQN(d, a.table)+
			" WHERE source_id = ? AND table_name = ?"),
		Args: []any{source, table},
	}
	var res Result
	if err := a.exec.Store().QueryRow(ctx, q, &res.Distinct, &res.Total); err != nil {
		return Result{}, fmt.Errorf("read unmatched totals of %s: %w", table, err)
	}
	return res, nil
}

func (a *Aggregator) clear(d sqlbuild.Dialect, source int64, tbl coding.Table) sqlbuild.Query {
	return sqlbuild.Delete(d, sqlbuild.FQN(d, a.table)).
		Where("source_id = ?", source).
		Where("table_name = ?", tbl.Name).
		Render()
}

func folded(tbl coding.Table) string { return "lower(trim(t." + tbl.Raw + "))" }

func aggregateColumns() []string {
	return []string{"source_id", "table_name", "raw_value", "value_count"}
}

func unresolved(s sqlbuild.Statement, tbl coding.Table) sqlbuild.Statement {
	return s.Where("t."+tbl.Resolved+" IS NULL").
		Where("t."+tbl.Raw+" IS NOT NULL").
		Where(folded(tbl)+" <> ''").
		Then("GROUP BY " + folded(tbl))
}

func (a *Aggregator) direct(d sqlbuild.Dialect, source int64, tbl coding.Table) sqlbuild.Statement {
	exprs := []string{sqlbuild.Cast(d, "?", "int"), sqlbuild.Cast(d, "?", "text"), folded(tbl), "COUNT(*)"}
	return unresolved(sqlbuild.InsertSelect(d, sqlbuild.FQN(d, a.table), aggregateColumns(), exprs,
		tbl.FQN+" t", source, tbl.Name), tbl)
}

// partials writes one (value, count) row per value per window into a fresh
// temporary table and returns its quoted name and a drop function.
func (a *Aggregator) partials(ctx context.Context, source int64, tbl coding.Table, min, max, size int64) (string, func(), error) {
	store := a.exec.Store()
	d := store.Dialect()
	name := fmt.Sprintf("tmp_agg_%016x", xxh3.HashString(tbl.FQN))
	tmp := d.TempTable(name)
	drop := func() {
		if _, err := store.Exec(context.WithoutCancel(ctx), sqlbuild.Query{SQL: d.DropTable(tmp)}); err != nil {
			log := a.exec.Log()
			log.Warn().Err(err).Str("table", name).Msg("drop partial counts")
		}
	}

	if _, err := store.Exec(ctx, sqlbuild.Query{SQL: d.DropTable(tmp)}); err != nil {
		return "", nil, fmt.Errorf("drop partial counts %s: %w", name, err)
	}
	if err := storage.CreateTable(ctx, store, ddl.PartialCounts(name)); err != nil {
		return "", nil, err
	}

	stmt := unresolved(sqlbuild.InsertSelect(d, tmp, []string{"raw_value", "value_count"},
		[]string{folded(tbl), "COUNT(*)"}, tbl.FQN+" t"), tbl)
	rep, err := a.exec.Run(ctx, stmt, min, max, size, "partial unmatched counts for "+tbl.Name)
	if err != nil {
		drop()
		return "", nil, err
	}
	if rep.Failed > 0 {
		log := a.exec.Log()
		log.Warn().Int64("source_id", source).Str("table", tbl.Name).Int("failed", rep.Failed).
			Msg("some windows failed, unmatched counts are incomplete")
	}
	return tmp, drop, nil
}

func (a *Aggregator) merge(d sqlbuild.Dialect, source int64, tbl coding.Table, tmp string) sqlbuild.Statement {
	exprs := []string{sqlbuild.Cast(d, "?", "int"), sqlbuild.Cast(d, "?", "text"), "raw_value", "SUM(value_count)"}
	return sqlbuild.InsertSelect(d, sqlbuild.FQN(d, a.table), aggregateColumns(), exprs, tmp, source, tbl.Name).
		Then("GROUP BY raw_value")
}
