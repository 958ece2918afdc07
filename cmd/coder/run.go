package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"coder/internal/coding"
	"coder/internal/config"
	"coder/internal/engine"
	"coder/internal/logging"
	"coder/internal/metrics"
	"coder/internal/metrics/datadog"
	"coder/internal/metrics/prompush"
	"coder/internal/storage"
)

type runFlags struct {
	sources        []int64
	mode           string
	domains        []string
	test           bool
	parallel       int
	metricsBackend string
	pushgatewayURL string
	logLevel       string
	logFormat      string
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Code the configured sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := opts.load()
			if err != nil {
				return err
			}
			f.apply(cmd, &r)
			if err := report(cmd.ErrOrStderr(), opts.cfgPath, config.ValidateRun(r)); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := logging.New(logging.Config{Level: r.Log.Level, Format: r.Log.Format, Output: cmd.ErrOrStderr()})
			return execute(ctx, r, log)
		},
	}

	f.bind(cmd)
	return cmd
}

func (f *runFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.Int64SliceVar(&f.sources, "source", nil, "only code these source ids (repeatable)")
	fl.StringVar(&f.mode, "mode", "", "incremental or recode-all (overrides the run file)")
	fl.StringSliceVar(&f.domains, "domains", nil, "domains to run, comma separated (default all)")
	fl.BoolVar(&f.test, "test", false, "work in the test schema")
	fl.IntVar(&f.parallel, "parallel", 0, "sources coded at once (overrides the run file)")
	fl.StringVar(&f.metricsBackend, "metrics-backend", "", "pushgateway, datadog or none (overrides the run file, then METRICS_BACKEND)")
	fl.StringVar(&f.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides the run file, then PUSHGATEWAY_URL)")
	fl.StringVar(&f.logLevel, "log-level", "", "trace, debug, info, warn or error")
	fl.StringVar(&f.logFormat, "log-format", "", "console or json")
}

// apply overlays explicitly set flags on the run file. Metrics settings fall
// back to the environment when neither the flag nor the file sets them.
func (f *runFlags) apply(cmd *cobra.Command, r *config.Run) {
	changed := cmd.Flags().Changed
	if len(f.sources) > 0 {
		var keep []config.Source
		for _, s := range r.Sources {
			if slices.Contains(f.sources, s.ID) {
				keep = append(keep, s)
			}
		}
		r.Sources = keep
	}
	if changed("mode") {
		r.Mode = f.mode
	}
	if changed("domains") {
		r.Domains = f.domains
	}
	if changed("test") {
		r.Test = f.test
	}
	if changed("parallel") {
		r.Runtime.Parallel = f.parallel
	}
	if changed("log-level") {
		r.Log.Level = f.logLevel
	}
	if changed("log-format") {
		r.Log.Format = f.logFormat
	}

	if changed("metrics-backend") {
		r.Metrics.Backend = f.metricsBackend
	} else if r.Metrics.Backend == "" {
		r.Metrics.Backend = os.Getenv("METRICS_BACKEND")
	}
	url := f.pushgatewayURL
	if url == "" {
		url = r.Metrics.Options.String("url", os.Getenv("PUSHGATEWAY_URL"))
	}
	if url != "" {
		if r.Metrics.Options == nil {
			r.Metrics.Options = config.Options{}
		}
		r.Metrics.Options["url"] = url
	}
}

// execute codes every source of r, at most r.Runtime.Parallel at a time. Each
// source id appears once in a validated run, so no source runs concurrently
// with itself.
func execute(ctx context.Context, r config.Run, log zerolog.Logger) error {
	runID := uuid.NewString()
	log = log.With().Str("run_id", runID).Str("job", r.Job).Logger()

	mode, err := coding.ParseMode(r.Mode)
	if err != nil {
		return err
	}

	b, err := newMetricsBackend(r.Metrics, r.Job)
	if err != nil {
		log.Warn().Err(err).Msg("metrics disabled")
	} else if b != nil {
		metrics.SetBackend(b)
		defer func() {
			if err := metrics.Flush(); err != nil {
				log.Warn().Err(err).Msg("metrics flush")
			}
		}()
	}

	start := time.Now()
	log.Info().Int("sources", len(r.Sources)).Str("mode", mode.String()).Bool("test", r.Test).Msg("coding run started")

	var g errgroup.Group
	g.SetLimit(max(r.Runtime.Parallel, 1))
	errs := make([]error, len(r.Sources))
	for i, src := range r.Sources {
		g.Go(func() error {
			errs[i] = codeSource(ctx, r, src, mode, log)
			return nil
		})
	}
	_ = g.Wait()

	err = errors.Join(errs...)
	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Dur("elapsed", time.Since(start)).Msg("coding run finished")
	return err
}

func codeSource(ctx context.Context, r config.Run, src config.Source, mode coding.Mode, log zerolog.Logger) error {
	log = log.With().Int64("source_id", src.ID).Str("source", src.Label()).Logger()

	store, err := storage.New(ctx, storage.Config{Kind: r.Storage.Kind, DSN: r.DSNFor(src)})
	if err != nil {
		log.Error().Err(err).Msg("connect")
		return fmt.Errorf("source %s: %w", src.Label(), err)
	}
	defer store.Close()

	ns := r.NamespaceFor(src)

	e, err := engine.New(store, log, engine.Options{
		Job:            r.Job,
		Mode:           mode,
		NS:             ns,
		BatchSize:      int64(r.Runtime.BatchSize),
		HeavyBatchSize: int64(r.Runtime.HeavyBatchSize),
		Domains:        r.Domains,
	})
	if err != nil {
		return fmt.Errorf("source %s: %w", src.Label(), err)
	}

	sum, err := e.Run(ctx, src.ID)
	if err != nil {
		return fmt.Errorf("source %s: %w", src.Label(), err)
	}
	log.Info().Int("tables", len(sum.Tables)).Int("failed", sum.Failed()).Dur("elapsed", sum.Elapsed).
		Msgf("source %s coded", src.Label())
	if err := sum.Err(); err != nil {
		return fmt.Errorf("source %s: %w", src.Label(), err)
	}
	return nil
}

// newMetricsBackend returns nil when metrics are disabled.
func newMetricsBackend(m config.Metrics, job string) (metrics.Backend, error) {
	switch m.Backend {
	case "", "none":
		return nil, nil
	case "pushgateway":
		return prompush.NewBackend(job, m.Options.String("url", "http://localhost:9091"))
	case "datadog":
		return datadog.NewBackend(datadog.Config{
			Addr:       m.Options.String("addr", ""),
			Namespace:  m.Options.String("namespace", ""),
			GlobalTags: m.Options.StringSlice("tags"),
		})
	default:
		return nil, fmt.Errorf("unknown metrics backend %q", m.Backend)
	}
}
