// Package report produces the coded-percentage summary emitted after each
// target table has been processed.
package report

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"coder/internal/coding"
	"coder/internal/sqlbuild"
	"coder/internal/storage"
)

// Coverage is the share of a table's rows with a non-null value in Column.
type Coverage struct {
	Table  string
	Noun   string // what is coded, e.g. "organisation ids"
	Column string
	Coded  int64
	Total  int64
}

// Percent is 0 for an empty table.
func (c Coverage) Percent() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Coded) * 100 / float64(c.Total)
}

func (c Coverage) String() string {
	return fmt.Sprintf("%d records, from %d, %.1f%%, have %s coded in %s", c.Coded, c.Total, c.Percent(), c.Noun, c.Table)
}

// Measure counts the rows of tbl and those with column set. An empty column
// measures the resolved column.
func Measure(ctx context.Context, s storage.Store, tbl coding.Table, noun, column string) (Coverage, error) {
	if column == "" {
		column = tbl.Resolved
	}
	if noun == "" {
		noun = column
	}
	c := Coverage{Table: tbl.Name, Noun: noun, Column: column}
	q := sqlbuild.Query{SQL: "SELECT COUNT(" + column + "), COUNT(*) FROM " + tbl.FQN}
	if err := s.QueryRow(ctx, q, &c.Coded, &c.Total); err != nil {
		return c, fmt.Errorf("measure coverage of %s: %w", tbl.Name, err)
	}
	return c, nil
}

// Log writes the summary line with its numbers as fields.
func Log(log zerolog.Logger, c Coverage) {
	log.Info().
		Str("table", c.Table).
		Str("column", c.Column).
		Int64("coded", c.Coded).
		Int64("total", c.Total).
		Float64("pct", c.Percent()).
		Msg(c.String())
}
