// Package normalize strips noise prefixes such as a leading "the " from raw
// values in place, before matching by name.
package normalize

import (
	"context"
	"fmt"
	"strings"

	"coder/internal/batch"
	"coder/internal/coding"
	"coder/internal/sqlbuild"
)

// Prefix removes the word(s) in Text, followed by a space, from the start of
// values that have at least MinTokens space-separated tokens. With MinTokens
// set to 3, short names like "The Lancet" are left intact.
type Prefix struct {
	Text      string
	MinTokens int
}

// Normalizer rewrites raw values of target tables.
type Normalizer struct {
	exec *batch.Executor
	mode coding.Mode
}

// New returns a normalizer running through exec.
func New(exec *batch.Executor, mode coding.Mode) *Normalizer {
	return &Normalizer{exec: exec, mode: mode}
}

// Apply strips every prefix from tbl's raw column and returns the number of
// rewritten rows.
func (n *Normalizer) Apply(ctx context.Context, tbl coding.Table, prefixes []Prefix, size int64) (int64, error) {
	var total int64
	for _, p := range prefixes {
		stmt, err := Statement(n.exec.Store().Dialect(), tbl, p)
		if err != nil {
			return total, err
		}
		stmt = stmt.Incremental("t."+coding.CodedOnColumn, n.mode.IncrementalOnly())

		rep, err := n.exec.RunOnTable(ctx, stmt, tbl.FQN, size, fmt.Sprintf("removed %q prefix in %s", strings.TrimSpace(p.Text), tbl.Name))
		total += rep.Total
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Statement renders the in-place rewrite for one prefix. The match is
// case-insensitive; the token count is the number of spaces plus one.
func Statement(d sqlbuild.Dialect, tbl coding.Table, p Prefix) (sqlbuild.Statement, error) {
	word := strings.ToLower(strings.TrimSpace(p.Text))
	if word == "" {
		return sqlbuild.Statement{}, fmt.Errorf("normalize: empty prefix")
	}
	if strings.ContainsAny(word, "%_") {
		return sqlbuild.Statement{}, fmt.Errorf("normalize: prefix %q contains a LIKE wildcard", p.Text)
	}
	text := word + " "
	raw := "t." + tbl.Raw
	tokens := d.Length("trim(" + raw + ")") + " - " +
		d.Length("replace(trim("+raw+"), ' ', '')") + " + 1"

	stmt := sqlbuild.Update(d, tbl.FQN, "t",
		[]sqlbuild.Assign{{
			Column: tbl.Raw,
			Expr:   "trim(" + d.SubstrFrom("trim("+raw+")", "?") + ")",
			Args:   []any{len([]rune(text)) + 1},
		}}).
		Where("lower(trim("+raw+")) LIKE ?", text+"%").
		Where(tokens+" >= ?", max(p.MinTokens, 1))
	return stmt, nil
}
