package sqlbuild

import (
	"strings"
)

// Query is a rendered statement ready for a driver: SQL text with
// dialect-specific placeholders plus the bound arguments in order.
type Query struct {
	SQL  string
	Args []any
}

// Fragment is a piece of SQL written with '?' markers and its arguments.
type Fragment struct {
	SQL  string
	Args []any
}

// Assign is one "column = expression" item of an UPDATE. Column is written
// unqualified; Expr may reference any alias in scope and may carry '?' markers.
type Assign struct {
	Column string
	Expr   string
	Args   []any
}

// Statement is an immutable description of a single SQL statement. Every
// modifier returns a copy, so a base statement can be specialised per batch
// window without the windows leaking into each other.
type Statement struct {
	d Dialect

	head Fragment
	tail Fragment

	where []Fragment

	incrementalCol string
	incremental    bool

	rangeCol string
	ranged   bool
	lo, hi   int64
}

// Raw wraps a complete statement head. Predicates added with Where are
// appended after a WHERE keyword.
func Raw(d Dialect, sql string, args ...any) Statement {
	return Statement{d: d, head: Fragment{SQL: sql, Args: args}}
}

// Update builds "UPDATE table AS alias SET ... [FROM ...]" in the dialect's
// shape. The id-range column defaults to alias.id.
func Update(d Dialect, table, alias string, set []Assign, from ...string) Statement {
	parts := make([]string, 0, len(set))
	var args []any
	for _, a := range set {
		parts = append(parts, a.Column+" = "+a.Expr)
		args = append(args, a.Args...)
	}
	return Statement{
		d:        d,
		head:     Fragment{SQL: d.UpdateHead(table, alias, parts, from), Args: args},
		rangeCol: alias + ".id",
	}
}

// Delete builds "DELETE FROM table". Predicates must use unqualified column
// names for the target; the id-range column defaults to id.
func Delete(d Dialect, table string) Statement {
	return Statement{
		d:        d,
		head:     Fragment{SQL: "DELETE FROM " + table},
		rangeCol: "id",
	}
}

// InsertSelect builds "INSERT INTO table (cols) SELECT exprs FROM source".
// The id-range column defaults to t.id, so source is normally aliased t.
func InsertSelect(d Dialect, table string, cols []string, exprs []string, source string, args ...any) Statement {
	sql := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") SELECT " +
		strings.Join(exprs, ", ") + " FROM " + source
	return Statement{
		d:        d,
		head:     Fragment{SQL: sql, Args: args},
		rangeCol: "t.id",
	}
}

// Dialect returns the dialect the statement renders for.
func (s Statement) Dialect() Dialect { return s.d }

// Where appends a base predicate.
func (s Statement) Where(sql string, args ...any) Statement {
	s.where = append(append([]Fragment(nil), s.where...), Fragment{SQL: sql, Args: args})
	return s
}

// Incremental adds "col IS NULL" when enabled is true. Calling it again
// replaces the previous setting.
func (s Statement) Incremental(col string, enabled bool) Statement {
	s.incrementalCol = col
	s.incremental = enabled
	return s
}

// RangeOn overrides the column used by InRange.
func (s Statement) RangeOn(col string) Statement {
	s.rangeCol = col
	return s
}

// InRange restricts the statement to rangeCol >= lo AND rangeCol < hi.
func (s Statement) InRange(lo, hi int64) Statement {
	s.ranged = true
	s.lo, s.hi = lo, hi
	return s
}

// Ranged reports whether an id window has been applied.
func (s Statement) Ranged() bool { return s.ranged }

// Then appends trailing SQL (e.g. GROUP BY) after the predicates.
func (s Statement) Then(sql string, args ...any) Statement {
	s.tail = Fragment{SQL: sql, Args: args}
	return s
}

// Render produces the final SQL text and arguments.
func (s Statement) Render() Query {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(s.head.SQL)
	args = append(args, s.head.Args...)

	preds := make([]Fragment, 0, len(s.where)+2)
	preds = append(preds, s.where...)
	if s.incremental && s.incrementalCol != "" {
		preds = append(preds, Fragment{SQL: s.incrementalCol + " IS NULL"})
	}
	if s.ranged {
		preds = append(preds, Fragment{
			SQL:  s.rangeCol + " >= ? AND " + s.rangeCol + " < ?",
			Args: []any{s.lo, s.hi},
		})
	}
	for i, p := range preds {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		if len(preds) > 1 {
			b.WriteString("(" + p.SQL + ")")
		} else {
			b.WriteString(p.SQL)
		}
		args = append(args, p.Args...)
	}
	if s.tail.SQL != "" {
		b.WriteByte(' ')
		b.WriteString(s.tail.SQL)
		args = append(args, s.tail.Args...)
	}

	return Query{SQL: Bind(s.d, b.String()), Args: args}
}

// Bind rewrites '?' markers into the dialect's placeholders, numbering them
// left to right. Markers inside quoted strings and quoted identifiers are left
// alone.
func Bind(d Dialect, sql string) string {
	if d == nil || d.Placeholder(1) == "?" {
		return sql
	}
	var (
		b     strings.Builder
		n     int
		quote byte
	)
	b.Grow(len(sql) + 8)
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			b.WriteByte(c)
		case c == '\'' || c == '"':
			quote = c
			b.WriteByte(c)
		case c == '[':
			quote = ']'
			b.WriteByte(c)
		case c == '?':
			n++
			b.WriteString(d.Placeholder(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// In renders "expr IN (?, ?, ...)" for n values. A non-positive n renders a
// predicate that matches nothing.
func In(expr string, n int) string {
	if n <= 0 {
		return "1 = 0"
	}
	return expr + " IN (" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

// Cast renders "CAST(expr AS <type>)" using the dialect's spelling of the
// logical type. Bound parameters in SELECT lists need it on Postgres, which
// otherwise infers them as text.
func Cast(d Dialect, expr, kind string) string {
	return "CAST(" + expr + " AS " + d.ColumnType(kind) + ")"
}
