// Package pipeline runs the resolution stages for one target table in a fixed
// order: reset (recode-all only), noise removal, prefix normalisation, match
// passes, multi-value split, duplicate collapse, unmatched aggregation and a
// coverage summary. Domains supply Targets; the stages are the same for all.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"coder/internal/anomaly"
	"coder/internal/batch"
	"coder/internal/coding"
	"coder/internal/match"
	"coder/internal/metrics"
	"coder/internal/noise"
	"coder/internal/normalize"
	"coder/internal/report"
	"coder/internal/unmatched"
)

// Target configures the stages for one table. Nil or empty fields skip the
// corresponding stage.
type Target struct {
	Table      coding.Table
	Noun       string // used in the coverage line, e.g. "MeSH codes"
	BatchSize  int64
	Denylist   *noise.Denylist
	Prefixes   []normalize.Prefix
	Passes     []match.Pass
	ResetExtra []string // propagated columns cleared with the resolved ones
	Split      *anomaly.Split
	Collapse   bool
	Aggregate  bool
}

// Outcome collects what each stage did to a table.
type Outcome struct {
	Table      string
	Reset      int64
	Removed    int64
	Normalized int64
	Matched    map[match.Kind]int64
	Split      anomaly.SplitResult
	Collapsed  int64
	Unmatched  unmatched.Result
	Coverage   report.Coverage
	Elapsed    time.Duration
}

// Pipeline runs targets for one source in one mode.
type Pipeline struct {
	exec   *batch.Executor
	mode   coding.Mode
	source int64
	agg    *unmatched.Aggregator
}

// New returns a pipeline. agg may be nil, in which case no target aggregates.
func New(exec *batch.Executor, mode coding.Mode, source int64, agg *unmatched.Aggregator) *Pipeline {
	return &Pipeline{exec: exec, mode: mode, source: source, agg: agg}
}

// Run executes every stage for t. The first stage error stops the table and
// is returned with the outcome so far; failed batches inside a stage are not
// stage errors.
func (p *Pipeline) Run(ctx context.Context, t Target) (out Outcome, err error) {
	start := time.Now()
	out = Outcome{Table: t.Table.Name}
	defer func() { out.Elapsed = time.Since(start) }()

	store := p.exec.Store()
	size := t.BatchSize
	log := p.exec.Log().With().Str("table", t.Table.Name).Logger()

	if p.mode == coding.RecodeAll && len(t.Passes) > 0 {
		err = p.step(t, "reset", func() error {
			rep, err := match.New(p.exec, p.mode).Reset(ctx, t.Table, t.ResetExtra, size)
			out.Reset = rep.Total
			return err
		})
		if err != nil {
			return out, err
		}
	}

	if t.Denylist != nil && t.Denylist.Len() > 0 {
		err = p.step(t, "noise", func() error {
			out.Removed, err = noise.NewFilter(p.exec, p.mode).Apply(ctx, t.Table, t.Denylist, size)
			return err
		})
		if err != nil {
			return out, err
		}
	}

	if len(t.Prefixes) > 0 {
		err = p.step(t, "normalize", func() error {
			out.Normalized, err = normalize.New(p.exec, p.mode).Apply(ctx, t.Table, t.Prefixes, size)
			return err
		})
		if err != nil {
			return out, err
		}
	}

	var (
		scratch *anomaly.Scratch
		maxID   int64
	)
	if t.Collapse && p.mode.IncrementalOnly() {
		err = p.step(t, "snapshot", func() error {
			if scratch, err = anomaly.NewScratch(ctx, store, t.Table); err != nil {
				return err
			}
			maxID, err = scratch.Snapshot(ctx, t.Table)
			return err
		})
		if scratch != nil {
			defer func() {
				if derr := scratch.Drop(context.WithoutCancel(ctx)); derr != nil {
					log.Warn().Err(derr).Msg("drop scratch ids")
				}
			}()
		}
		if err != nil {
			return out, err
		}
	}

	matcher := match.New(p.exec, p.mode)
	if len(t.Passes) > 0 {
		err = p.step(t, "match", func() error {
			out.Matched, err = matcher.RunAll(ctx, t.Table, t.Passes, size)
			return err
		})
		if err != nil {
			return out, err
		}
	}

	if t.Split != nil {
		err = p.step(t, "split", func() error {
			out.Split, err = anomaly.NewSplitter(p.exec).Apply(ctx, t.Table, *t.Split, size)
			if err != nil || out.Split.Inserted == 0 {
				return err
			}
			// components need their own canonical display values
			_, err = matcher.RunAll(ctx, t.Table, canonical(t.Passes), size)
			return err
		})
		if err != nil {
			return out, err
		}
	}

	if t.Collapse {
		err = p.step(t, "collapse", func() error {
			if scratch != nil {
				if _, err := scratch.AddAbove(ctx, t.Table, maxID); err != nil {
					return err
				}
			}
			out.Collapsed, err = anomaly.NewCollapser(p.exec).Apply(ctx, t.Table, scratch, size)
			return err
		})
		if err != nil {
			return out, err
		}
	}

	if t.Aggregate && p.agg != nil {
		err = p.step(t, "aggregate", func() error {
			out.Unmatched, err = p.agg.Aggregate(ctx, p.source, t.Table, size)
			return err
		})
		if err != nil {
			return out, err
		}
	}

	err = p.step(t, "summary", func() error {
		out.Coverage, err = report.Measure(ctx, store, t.Table, t.Noun, "")
		if err == nil {
			report.Log(log, out.Coverage)
		}
		return err
	})
	return out, err
}

func (p *Pipeline) step(t Target, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStep(p.exec.Job(), t.Table.Name+"/"+name, err, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s %s: %w", t.Table.Name, name, err)
	}
	return nil
}

func canonical(passes []match.Pass) []match.Pass {
	var out []match.Pass
	for _, p := range passes {
		if p.Kind == match.Canonical {
			out = append(out, p)
		}
	}
	return out
}
