package config

import (
	"fmt"
	"strings"

	"coder/internal/coding"
	"coder/internal/domains"
	"coder/internal/logging"
	"coder/internal/sqlbuild"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to the operator but does not block.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into the
// run file (e.g. "storage.kind", "sources[1].id").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateRun performs static validation of a decoded run. It does not
// mutate r; defaults are expected to have been applied by Load.
func ValidateRun(r Run) []Issue {
	var issues []Issue

	if strings.TrimSpace(r.Job) == "" {
		issues = append(issues, Issue{SeverityError, "job", "job must not be empty; it labels metrics and log lines"})
	}
	if _, err := coding.ParseMode(r.Mode); err != nil {
		issues = append(issues, Issue{SeverityError, "mode", err.Error()})
	}
	if _, err := domains.Select(r.Domains); err != nil {
		issues = append(issues, Issue{SeverityError, "domains", err.Error()})
	}

	issues = append(issues, validateStorage(r)...)
	issues = append(issues, validateSources(r)...)
	issues = append(issues, validateRuntime(r.Runtime, len(r.Sources))...)
	issues = append(issues, validateMetrics(r.Metrics)...)
	issues = append(issues, validateLog(r.Log)...)
	return issues
}

func validateStorage(r Run) []Issue {
	var issues []Issue
	s := r.Storage

	switch {
	case strings.TrimSpace(s.Kind) == "":
		issues = append(issues, Issue{SeverityError, "storage.kind", "storage.kind must not be empty"})
	case sqlbuild.ForKind(s.Kind) == nil:
		issues = append(issues, Issue{SeverityError, "storage.kind",
			fmt.Sprintf("unsupported storage kind %q (want postgres, sqlite or mssql)", s.Kind)})
	}

	if r.Test && strings.TrimSpace(s.TestSchema) == "" {
		issues = append(issues, Issue{SeverityError, "storage.test_schema", "test runs need a test schema"})
	}
	if strings.TrimSpace(s.AggregateTable) == "" {
		issues = append(issues, Issue{SeverityWarning, "storage.aggregate_table",
			"no aggregate table configured; unmatched values will not be recorded"})
	}
	if strings.EqualFold(s.Kind, "sqlite") && strings.Contains(s.AggregateTable, ".") {
		issues = append(issues, Issue{SeverityWarning, "storage.aggregate_table",
			"schema-qualified names need the schema ATTACHed in sqlite"})
	}
	return issues
}

func validateSources(r Run) []Issue {
	var issues []Issue
	if len(r.Sources) == 0 {
		return append(issues, Issue{SeverityError, "sources", "at least one source is required"})
	}

	seen := make(map[int64]int, len(r.Sources))
	for i, s := range r.Sources {
		path := fmt.Sprintf("sources[%d]", i)
		if s.ID <= 0 {
			issues = append(issues, Issue{SeverityError, path + ".id", "source id must be positive"})
		} else if j, dup := seen[s.ID]; dup {
			issues = append(issues, Issue{SeverityError, path + ".id",
				fmt.Sprintf("source %d is listed twice (also sources[%d]); a source must never run concurrently with itself", s.ID, j)})
		} else {
			seen[s.ID] = i
		}
		if strings.TrimSpace(r.DSNFor(s)) == "" {
			issues = append(issues, Issue{SeverityError, path + ".dsn", "no dsn for source and no storage.dsn default"})
		}
		if !r.Test && strings.TrimSpace(r.SchemaFor(s)) == "" && !strings.EqualFold(r.Storage.Kind, "sqlite") {
			issues = append(issues, Issue{SeverityWarning, path + ".schema",
				"no data schema; target tables resolve through the search path"})
		}
	}
	return append(issues, validateSharedTargets(r)...)
}

// validateSharedTargets rejects parallel runs in which two sources would
// write the same target tables: same database and same data schema. Test
// runs map every source to storage.test_schema, so they collide whenever
// they share a database.
func validateSharedTargets(r Run) []Issue {
	if r.Runtime.Parallel <= 1 {
		return nil
	}
	var issues []Issue
	first := make(map[string]int, len(r.Sources))
	for i, s := range r.Sources {
		key := strings.TrimSpace(r.DSNFor(s)) + "\x00" + strings.ToLower(strings.TrimSpace(r.NamespaceFor(s).Data))
		j, clash := first[key]
		if !clash {
			first[key] = i
			continue
		}
		issues = append(issues, Issue{SeverityError, fmt.Sprintf("sources[%d]", i),
			fmt.Sprintf("writes the same target tables as sources[%d] (same dsn and data schema); they cannot run in parallel, set runtime.parallel to 1", j)})
	}
	return issues
}

func validateRuntime(rt RuntimeConfig, sources int) []Issue {
	var issues []Issue
	if rt.BatchSize <= 0 {
		issues = append(issues, Issue{SeverityError, "runtime.batch_size", "batch_size must be positive"})
	}
	if rt.HeavyBatchSize <= 0 {
		issues = append(issues, Issue{SeverityError, "runtime.heavy_batch_size", "heavy_batch_size must be positive"})
	} else if rt.BatchSize > 0 && rt.HeavyBatchSize > rt.BatchSize {
		issues = append(issues, Issue{SeverityWarning, "runtime.heavy_batch_size",
			"heavy_batch_size is larger than batch_size; wide tables usually need smaller batches"})
	}
	if rt.Parallel <= 0 {
		issues = append(issues, Issue{SeverityError, "runtime.parallel", "parallel must be positive"})
	} else if sources > 0 && rt.Parallel > sources {
		issues = append(issues, Issue{SeverityWarning, "runtime.parallel",
			fmt.Sprintf("parallel=%d exceeds the %d configured sources", rt.Parallel, sources)})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch strings.ToLower(strings.TrimSpace(m.Backend)) {
	case "", "none":
	case "pushgateway":
		if m.Options.String("url", "") == "" {
			issues = append(issues, Issue{SeverityWarning, "metrics.options.url",
				"no pushgateway url; PUSHGATEWAY_URL or http://localhost:9091 is used"})
		}
	case "datadog":
		if m.Options.String("addr", "") == "" {
			issues = append(issues, Issue{SeverityError, "metrics.options.addr", "datadog backend requires addr"})
		}
	default:
		issues = append(issues, Issue{SeverityError, "metrics.backend",
			fmt.Sprintf("unknown metrics backend %q (want pushgateway, datadog or none)", m.Backend)})
	}
	return issues
}

func validateLog(l Log) []Issue {
	var issues []Issue
	if !logging.KnownLevel(l.Level) {
		issues = append(issues, Issue{SeverityWarning, "log.level", fmt.Sprintf("unknown level %q; info is used", l.Level)})
	}
	switch strings.ToLower(l.Format) {
	case "", "console", "json":
	default:
		issues = append(issues, Issue{SeverityWarning, "log.format", fmt.Sprintf("unknown format %q; console is used", l.Format)})
	}
	return issues
}
