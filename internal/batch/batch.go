// Package batch runs a mutation over a table's id range in fixed-size
// windows. Each window is its own statement: a failing window is recorded and
// the next one still runs, so partial progress survives.
package batch

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"coder/internal/metrics"
	"coder/internal/sqlbuild"
	"coder/internal/storage"
)

// Window is the half-open id range [Lo, Hi).
type Window struct {
	Lo, Hi int64
}

func (w Window) String() string { return fmt.Sprintf("%d to %d", w.Lo, w.Hi) }

// Windows partitions [min, max] by linear stepping from min. It returns nil
// when the span fits in one batch (max-min <= size), meaning "run once,
// unrestricted". Ids need not be contiguous.
func Windows(min, max, size int64) []Window {
	if size <= 0 || max-min <= size {
		return nil
	}
	out := make([]Window, 0, (max-min)/size+1)
	for r := min; r <= max; r += size {
		out = append(out, Window{Lo: r, Hi: r + size})
	}
	return out
}

// Result is the outcome of one statement execution.
type Result struct {
	Window   Window
	Single   bool // ran once over the whole table, no id predicate
	Affected int64
	Err      error
}

// Report sums the results of one action over a table.
type Report struct {
	Action  string
	Results []Result
	Total   int64
	Failed  int
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	if res.Err != nil {
		r.Failed++
		return
	}
	r.Total += res.Affected
}

// Executor runs statements through BatchExecutor semantics against a store.
type Executor struct {
	store storage.Store
	log   zerolog.Logger
	job   string
}

// NewExecutor returns an executor that logs operator lines to log and tags
// metrics with job.
func NewExecutor(s storage.Store, log zerolog.Logger, job string) *Executor {
	return &Executor{store: s, log: log, job: job}
}

// Store returns the underlying store.
func (e *Executor) Store() storage.Store { return e.store }

// Log returns the executor's logger.
func (e *Executor) Log() zerolog.Logger { return e.log }

// Job returns the metrics job label.
func (e *Executor) Job() string { return e.job }

// Bounds returns the min and max id of table (a quoted name). ok is false for
// an empty table.
func (e *Executor) Bounds(ctx context.Context, table string) (min, max int64, ok bool, err error) {
	var lo, hi sql.NullInt64
	q := sqlbuild.Query{SQL: "SELECT MIN(id), MAX(id) FROM " + table}
	if err := e.store.QueryRow(ctx, q, &lo, &hi); err != nil {
		return 0, 0, false, fmt.Errorf("id bounds of %s: %w", table, err)
	}
	if !lo.Valid || !hi.Valid {
		return 0, 0, false, nil
	}
	return lo.Int64, hi.Int64, true, nil
}

// Run executes stmt over [min, max]. With a single window the statement runs
// as is; otherwise each window adds its id-range predicate. Statement
// failures are logged and counted; only storage.Fatal errors stop the loop
// and are returned.
func (e *Executor) Run(ctx context.Context, stmt sqlbuild.Statement, min, max, size int64, action string) (Report, error) {
	return e.Each(ctx, min, max, size, action, func(ctx context.Context, w Window, single bool) (int64, error) {
		s := stmt
		if !single {
			s = stmt.InRange(w.Lo, w.Hi)
		}
		return e.store.Exec(ctx, s.Render())
	})
}

// RunOnTable looks up table's id bounds and calls Run. An empty table
// short-circuits to a zero report.
func (e *Executor) RunOnTable(ctx context.Context, stmt sqlbuild.Statement, table string, size int64, action string) (Report, error) {
	min, max, ok, err := e.Bounds(ctx, table)
	if err != nil {
		return Report{Action: action}, err
	}
	if !ok {
		e.log.Debug().Str("action", action).Msgf("0 %s - table %s is empty", action, table)
		return Report{Action: action}, nil
	}
	return e.Run(ctx, stmt, min, max, size, action)
}

// WindowFunc performs the work for one window and returns the affected row
// count. single is true when the whole table is handled in one call; w then
// spans [min, max+1).
type WindowFunc func(ctx context.Context, w Window, single bool) (int64, error)

// Each drives fn over the windows of [min, max] with the same logging,
// metrics and failure policy as Run.
func (e *Executor) Each(ctx context.Context, min, max, size int64, action string, fn WindowFunc) (Report, error) {
	rep := Report{Action: action}
	windows := Windows(min, max, size)
	single := windows == nil
	if single {
		windows = []Window{{Lo: min, Hi: max + 1}}
	}

	start := time.Now()
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			e.record(rep)
			return rep, err
		}
		n, err := fn(ctx, w, single)
		res := Result{Window: w, Single: single, Affected: n, Err: err}
		rep.add(res)
		e.logResult(action, res)

		if err != nil && storage.Fatal(err) {
			e.record(rep)
			return rep, fmt.Errorf("%s %s: %w", action, rangeText(res), err)
		}
	}
	e.record(rep)

	if !single {
		e.log.Debug().
			Str("action", action).
			Int("batches", len(rep.Results)).
			Int("failed", rep.Failed).
			Int64("total", rep.Total).
			Dur("elapsed", time.Since(start)).
			Msg("batched action finished")
	}
	return rep, nil
}

func (e *Executor) logResult(action string, res Result) {
	if res.Err != nil {
		e.log.Error().Err(res.Err).Str("action", action).Str("range", rangeText(res)).
			Msgf("%s failed - %s", action, rangeText(res))
		return
	}
	e.log.Info().Str("action", action).Int64("affected", res.Affected).
		Msgf("%d %s - %s", res.Affected, action, rangeText(res))
}

func (e *Executor) record(rep Report) {
	metrics.RecordRows(e.job, rep.Action, rep.Total)
	metrics.RecordBatches(e.job, rep.Action, "ok", int64(len(rep.Results)-rep.Failed))
	metrics.RecordBatches(e.job, rep.Action, "failed", int64(rep.Failed))
}

func rangeText(res Result) string {
	if res.Single {
		return "as a single query"
	}
	return res.Window.String()
}
