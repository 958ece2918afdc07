// Package engine codes one source: it runs the selected domains in their
// fixed order through the resolution pipeline and reports what happened.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"coder/internal/batch"
	"coder/internal/coding"
	"coder/internal/domains"
	"coder/internal/metrics"
	"coder/internal/pipeline"
	"coder/internal/storage"
	"coder/internal/unmatched"
)

// Options configure a run for one source.
type Options struct {
	Job            string
	Mode           coding.Mode
	NS             coding.Namespace
	BatchSize      int64
	HeavyBatchSize int64
	Domains        []string // empty runs every domain
}

// TableResult is the outcome of one target table.
type TableResult struct {
	Domain  string
	Outcome pipeline.Outcome
	Err     error
}

// Summary is what a source run did.
type Summary struct {
	Source  int64
	Tables  []TableResult
	Elapsed time.Duration
}

// Failed counts tables that stopped with an error.
func (s Summary) Failed() int {
	n := 0
	for _, t := range s.Tables {
		if t.Err != nil {
			n++
		}
	}
	return n
}

// Err joins the table errors, or returns nil.
func (s Summary) Err() error {
	var errs []error
	for _, t := range s.Tables {
		if t.Err != nil {
			errs = append(errs, t.Err)
		}
	}
	return errors.Join(errs...)
}

// Engine runs domains against one store.
type Engine struct {
	store   storage.Store
	log     zerolog.Logger
	opts    Options
	domains []domains.Domain
}

// New validates the domain selection and returns an engine.
func New(s storage.Store, log zerolog.Logger, opts Options) (*Engine, error) {
	sel, err := domains.Select(opts.Domains)
	if err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("engine: batch size must be positive, got %d", opts.BatchSize)
	}
	return &Engine{store: s, log: log, opts: opts, domains: sel}, nil
}

// Run codes source. A table that fails is reported and the run continues
// with the next table and domain; only a cancelled context stops it early.
func (e *Engine) Run(ctx context.Context, source int64) (Summary, error) {
	start := time.Now()
	sum := Summary{Source: source}
	log := e.log.With().Int64("source_id", source).Str("mode", e.opts.Mode.String()).Logger()

	var agg *unmatched.Aggregator
	if e.opts.NS.Aggregate != "" {
		agg = unmatched.New(batch.NewExecutor(e.store, log, e.opts.Job), e.opts.NS.Aggregate)
		if err := agg.Ensure(ctx); err != nil {
			return sum, fmt.Errorf("ensure unmatched table: %w", err)
		}
	}

	env := domains.Env{
		Dialect:        e.store.Dialect(),
		NS:             e.opts.NS,
		BatchSize:      e.opts.BatchSize,
		HeavyBatchSize: e.opts.HeavyBatchSize,
	}
	for _, d := range e.domains {
		dlog := log.With().Str("domain", d.Name).Logger()
		exec := batch.NewExecutor(e.store, dlog, e.opts.Job)
		p := pipeline.New(exec, e.opts.Mode, source, agg)

		dstart := time.Now()
		var derr error
		for _, t := range d.Targets(env) {
			if err := ctx.Err(); err != nil {
				sum.Elapsed = time.Since(start)
				return sum, err
			}
			out, err := p.Run(ctx, t)
			sum.Tables = append(sum.Tables, TableResult{Domain: d.Name, Outcome: out, Err: err})
			if err != nil {
				derr = err
				dlog.Error().Err(err).Str("table", t.Table.Name).Msg("coding stopped for table")
			}
		}
		metrics.RecordStep(e.opts.Job, d.Name, derr, time.Since(dstart))
		dlog.Info().Dur("elapsed", time.Since(dstart)).Msgf("%s coded for source %d", d.Name, source)
	}

	sum.Elapsed = time.Since(start)
	return sum, nil
}
