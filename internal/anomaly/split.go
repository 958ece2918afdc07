// Package anomaly cleans up after matching: rows whose match produced a
// delimiter-joined multi-value result are split into one row per value, and
// rows that collide on (parent, resolved code) are collapsed to the oldest.
package anomaly

import (
	"context"
	"fmt"
	"strings"

	"coder/internal/batch"
	"coder/internal/coding"
	"coder/internal/sqlbuild"
	"coder/internal/storage"
)

// DefaultDelimiter joins multiple matched values in one field.
const DefaultDelimiter = "//"

// Split configures multi-value splitting for a table. CopyColumns are carried
// verbatim onto every component row and must include coded_on; the id is
// always fresh.
type Split struct {
	Delimiter    string
	CopyColumns  []string
	ResolvedType string // logical type of the resolved column, "text" or "int"
}

// SplitResult summarises a split run.
type SplitResult struct {
	Originals int64 // multi-value rows removed
	Inserted  int64 // component rows added
	Cleared   int64 // rows holding only delimiters, left uncoded
	Before    int64 // table row count before
	After     int64 // table row count after
}

// Consistent reports whether the row count moved by exactly
// Inserted - Originals.
func (r SplitResult) Consistent() bool {
	return r.After-r.Before == r.Inserted-r.Originals
}

// Splitter replaces multi-value rows with one row per component.
type Splitter struct {
	exec *batch.Executor
}

// NewSplitter returns a splitter running through exec.
func NewSplitter(exec *batch.Executor) *Splitter {
	return &Splitter{exec: exec}
}

type multiRow struct {
	id      int64
	codes   []string
	display []*string
}

// Apply splits every resolved value of tbl containing the delimiter. Each
// window runs in one transaction: component rows are inserted, then the
// originals in the window are deleted. A value with no non-empty component
// is not split; its row is uncoded instead, so the raw value stays in the
// table and is counted as unmatched.
func (s *Splitter) Apply(ctx context.Context, tbl coding.Table, cfg Split, size int64) (SplitResult, error) {
	var res SplitResult
	delim := cfg.Delimiter
	if delim == "" {
		delim = DefaultDelimiter
	}
	store := s.exec.Store()
	log := s.exec.Log()

	before, err := count(ctx, store, tbl)
	if err != nil {
		return res, err
	}
	res.Before = before

	min, max, ok, err := s.exec.Bounds(ctx, tbl.FQN)
	if err != nil || !ok {
		res.After = before
		return res, err
	}

	action := "inserted split values in " + tbl.Name
	_, err = s.exec.Each(ctx, min, max, size, action, func(ctx context.Context, w batch.Window, _ bool) (int64, error) {
		var originals, inserted, cleared int64
		err := store.InTx(ctx, func(tx storage.Execer) error {
			rows, err := selectMulti(ctx, store.Dialect(), tx, tbl, delim, w)
			if err != nil {
				return err
			}
			for _, r := range rows {
				if len(r.codes) == 0 {
					if _, err := tx.Exec(ctx, uncode(store.Dialect(), tbl, r.id)); err != nil {
						return fmt.Errorf("uncode empty split of row %d: %w", r.id, err)
					}
					cleared++
					continue
				}
				for i, code := range r.codes {
					var disp *string
					if r.display != nil {
						disp = r.display[i]
					}
					if _, err := tx.Exec(ctx, insertComponent(store.Dialect(), tbl, cfg, r.id, code, disp)); err != nil {
						return fmt.Errorf("insert component of row %d: %w", r.id, err)
					}
					inserted++
				}
			}
			if len(rows) == 0 {
				return nil
			}
			n, err := tx.Exec(ctx, deleteMulti(store.Dialect(), tbl, delim, w))
			if err != nil {
				return fmt.Errorf("delete split originals: %w", err)
			}
			originals = n
			return nil
		})
		if err != nil {
			return 0, err
		}
		res.Originals += originals
		res.Inserted += inserted
		res.Cleared += cleared
		return inserted, nil
	})
	if err != nil {
		return res, err
	}

	if res.After, err = count(ctx, store, tbl); err != nil {
		return res, err
	}
	ev := log.Info()
	if !res.Consistent() {
		ev = log.Warn()
	}
	ev.Str("table", tbl.Name).
		Int64("before", res.Before).
		Int64("after", res.After).
		Int64("originals", res.Originals).
		Int64("inserted", res.Inserted).
		Int64("cleared", res.Cleared).
		Msgf("%d records before split, %d after, %d multi-value rows replaced by %d", res.Before, res.After, res.Originals, res.Inserted)
	return res, nil
}

func likeDelim(delim string) string { return "%" + delim + "%" }

func selectMulti(ctx context.Context, d sqlbuild.Dialect, tx storage.Execer, tbl coding.Table, delim string, w batch.Window) ([]multiRow, error) {
	cols := "id, " + tbl.Resolved
	if tbl.Display != "" {
		cols += ", " + tbl.Display
	}
	q := sqlbuild.Raw(d, "SELECT "+cols+" FROM "+tbl.FQN).
		Where(tbl.Resolved+" LIKE ?", likeDelim(delim)).
		RangeOn("id").InRange(w.Lo, w.Hi).
		Then("ORDER BY id").
		Render()

	var out []multiRow
	err := tx.Query(ctx, q, func(sc storage.Scanner) error {
		var (
			id       int64
			resolved string
			display  *string
		)
		dest := []any{&id, &resolved}
		if tbl.Display != "" {
			dest = append(dest, &display)
		}
		if err := sc.Scan(dest...); err != nil {
			return err
		}
		out = append(out, splitRow(id, resolved, display, delim))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("select multi-value rows: %w", err)
	}
	return out, nil
}

// splitRow separates the parallel code and display fields. Empty components
// are dropped. Display values are paired by position only when both fields
// split into the same number of components; otherwise the display is left
// NULL for the canonical pass to fill.
func splitRow(id int64, resolved string, display *string, delim string) multiRow {
	r := multiRow{id: id}
	for _, c := range strings.Split(resolved, delim) {
		if c = strings.TrimSpace(c); c != "" {
			r.codes = append(r.codes, c)
		}
	}
	if display == nil {
		return r
	}
	var names []*string
	for _, n := range strings.Split(*display, delim) {
		if n = strings.TrimSpace(n); n != "" {
			n := n
			names = append(names, &n)
		}
	}
	if len(names) == len(r.codes) {
		r.display = names
	}
	return r
}

func insertComponent(d sqlbuild.Dialect, tbl coding.Table, cfg Split, id int64, code string, display *string) sqlbuild.Query {
	kind := cfg.ResolvedType
	if kind == "" {
		kind = "text"
	}
	cols := append(append([]string(nil), cfg.CopyColumns...), tbl.Resolved)
	exprs := append(append([]string(nil), cfg.CopyColumns...), sqlbuild.Cast(d, "?", kind))
	args := []any{code}
	if tbl.Display != "" {
		cols = append(cols, tbl.Display)
		exprs = append(exprs, sqlbuild.Cast(d, "?", "text"))
		args = append(args, display)
	}
	args = append(args, id)

	sql := "INSERT INTO " + tbl.FQN + " (" + strings.Join(cols, ", ") + ") SELECT " +
		strings.Join(exprs, ", ") + " FROM " + tbl.FQN + " WHERE id = ?"
	return sqlbuild.Query{SQL: sqlbuild.Bind(d, sql), Args: args}
}

// uncode clears the coding of one row whose resolved value split into nothing.
func uncode(d sqlbuild.Dialect, tbl coding.Table, id int64) sqlbuild.Query {
	set := []sqlbuild.Assign{{Column: tbl.Resolved, Expr: "NULL"}}
	if tbl.Display != "" {
		set = append(set, sqlbuild.Assign{Column: tbl.Display, Expr: "NULL"})
	}
	set = append(set, sqlbuild.Assign{Column: coding.CodedOnColumn, Expr: "NULL"})
	return sqlbuild.Update(d, tbl.FQN, "t", set).Where("t.id = ?", id).Render()
}

func deleteMulti(d sqlbuild.Dialect, tbl coding.Table, delim string, w batch.Window) sqlbuild.Query {
	return sqlbuild.Delete(d, tbl.FQN).
		Where(tbl.Resolved+" LIKE ?", likeDelim(delim)).
		InRange(w.Lo, w.Hi).
		Render()
}

func count(ctx context.Context, s storage.Store, tbl coding.Table) (int64, error) {
	var n int64
	if err := s.QueryRow(ctx, sqlbuild.Query{SQL: "SELECT COUNT(*) FROM " + tbl.FQN}, &n); err != nil {
		return 0, fmt.Errorf("count %s: %w", tbl.Name, err)
	}
	return n, nil
}
