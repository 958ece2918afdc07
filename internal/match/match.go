// Package match resolves raw values against the reference catalog with a
// chain of UPDATE ... FROM passes, most specific first:
//
//  1. Code: exact agreement on an externally supplied code.
//  2. Alias: case-folded exact name equality against an alias table, only for
//     rows still unresolved.
//  3. Canonical: for every resolved row, overwrite display fields with the
//     entity's current canonical values.
//  4. Secondary: domain-specific derivations for rows still unresolved.
//
// Code, Alias and Secondary passes stamp coded_on, so coded_on is set exactly
// when the resolved column is.
package match

import (
	"context"
	"fmt"
	"strings"

	"coder/internal/batch"
	"coder/internal/coding"
	"coder/internal/sqlbuild"
)

// Kind orders passes by specificity.
type Kind int

const (
	Code Kind = iota
	Alias
	Canonical
	Secondary
)

func (k Kind) String() string {
	switch k {
	case Code:
		return "code"
	case Alias:
		return "alias"
	case Canonical:
		return "canonical"
	case Secondary:
		return "secondary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Pass is one UPDATE joining the target table (alias t) to reference
// sources. From entries are rendered sources such as `"ctx"."orgs" AS r`;
// Join may carry '?' markers bound to Args.
type Pass struct {
	Kind  Kind
	Label string
	From  []string
	Join  string
	Args  []any
	Set   []sqlbuild.Assign
}

// Matcher runs passes through the batch executor.
type Matcher struct {
	exec *batch.Executor
	mode coding.Mode
}

// New returns a matcher for the given mode.
func New(exec *batch.Executor, mode coding.Mode) *Matcher {
	return &Matcher{exec: exec, mode: mode}
}

// Run applies one pass to tbl and returns the batch report.
func (m *Matcher) Run(ctx context.Context, tbl coding.Table, p Pass, size int64) (batch.Report, error) {
	stmt, err := Statement(m.exec.Store().Dialect(), tbl, p, m.mode)
	if err != nil {
		return batch.Report{Action: p.Label}, err
	}
	return m.exec.RunOnTable(ctx, stmt, tbl.FQN, size, label(p, tbl))
}

// RunAll applies passes in order and sums the affected rows per pass kind.
func (m *Matcher) RunAll(ctx context.Context, tbl coding.Table, passes []Pass, size int64) (map[Kind]int64, error) {
	out := make(map[Kind]int64, 4)
	for _, p := range passes {
		rep, err := m.Run(ctx, tbl, p, size)
		out[p.Kind] += rep.Total
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// Reset clears resolved state on every row: the resolved and display columns,
// any extra propagated columns and coded_on.
func (m *Matcher) Reset(ctx context.Context, tbl coding.Table, extra []string, size int64) (batch.Report, error) {
	cols := append([]string{tbl.Resolved}, extra...)
	if tbl.Display != "" {
		cols = append(cols, tbl.Display)
	}
	cols = append(cols, coding.CodedOnColumn)

	set := make([]sqlbuild.Assign, 0, len(cols))
	for _, c := range cols {
		set = append(set, sqlbuild.Assign{Column: c, Expr: "NULL"})
	}
	stmt := sqlbuild.Update(m.exec.Store().Dialect(), tbl.FQN, "t", set)
	return m.exec.RunOnTable(ctx, stmt, tbl.FQN, size, "cleared previous coding in "+tbl.Name)
}

// Statement renders a pass as a Statement, adding the restrictions that
// belong to its kind.
func Statement(d sqlbuild.Dialect, tbl coding.Table, p Pass, mode coding.Mode) (sqlbuild.Statement, error) {
	if len(p.Set) == 0 {
		return sqlbuild.Statement{}, fmt.Errorf("match: pass %q sets no columns", p.Label)
	}
	set := append([]sqlbuild.Assign(nil), p.Set...)
	if p.Kind != Canonical {
		set = append(set, sqlbuild.Assign{Column: coding.CodedOnColumn, Expr: "CURRENT_TIMESTAMP"})
	}

	stmt := sqlbuild.Update(d, tbl.FQN, "t", set, p.From...)
	if strings.TrimSpace(p.Join) != "" {
		stmt = stmt.Where(p.Join, p.Args...)
	}
	if p.Kind != Canonical {
		// coded_on is stamped only together with a resolved value
		target, ok := assigned(p.Set, tbl.Resolved)
		if !ok {
			return sqlbuild.Statement{}, fmt.Errorf("match: pass %q does not set %s", p.Label, tbl.Resolved)
		}
		stmt = stmt.Where(target.Expr+" IS NOT NULL", target.Args...)
	}

	resolved := "t." + tbl.Resolved
	switch p.Kind {
	case Code:
		stmt = stmt.Incremental("t."+coding.CodedOnColumn, mode.IncrementalOnly())
	case Alias, Secondary:
		stmt = stmt.Where(resolved+" IS NULL").
			Incremental("t."+coding.CodedOnColumn, mode.IncrementalOnly())
	case Canonical:
		var args []any
		for _, a := range p.Set {
			args = append(args, a.Args...)
		}
		stmt = stmt.Where(resolved+" IS NOT NULL").Where(changed(d, p.Set), args...)
	default:
		return sqlbuild.Statement{}, fmt.Errorf("match: unknown pass kind %v", p.Kind)
	}
	return stmt, nil
}

func assigned(set []sqlbuild.Assign, col string) (sqlbuild.Assign, bool) {
	for _, a := range set {
		if strings.EqualFold(a.Column, col) {
			return a, true
		}
	}
	return sqlbuild.Assign{}, false
}

// changed is true when any propagated column would change, so a re-run over
// unchanged catalog data affects no rows.
func changed(d sqlbuild.Dialect, set []sqlbuild.Assign) string {
	parts := make([]string, 0, len(set))
	for _, a := range set {
		parts = append(parts, d.Distinct("t."+a.Column, a.Expr))
	}
	return strings.Join(parts, " OR ")
}

func label(p Pass, tbl coding.Table) string {
	if p.Label != "" {
		return p.Label + " in " + tbl.Name
	}
	return "coded by " + p.Kind.String() + " in " + tbl.Name
}
