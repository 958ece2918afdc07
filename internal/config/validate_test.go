package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validRun() Run {
	r := Run{
		Job: "coder",
		Storage: Storage{
			Kind:           "postgres",
			DSN:            "postgres://u@localhost/mdr",
			Schema:         "ad",
			CatalogSchema:  "context_ctx",
			AggregateTable: "mon.unmatched_values",
		},
		Sources: []Source{{ID: 100120, Schema: "ad_100120"}, {ID: 100126, Schema: "ad_100126"}},
		Runtime: RuntimeConfig{Parallel: 2},
	}
	r.ApplyDefaults()
	return r
}

/*
TestValidateRun_Valid verifies that a well-formed run produces no issues.
*/
func TestValidateRun_Valid(t *testing.T) {
	t.Parallel()
	if issues := ValidateRun(validRun()); len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestValidateRun_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Run)
		path   string
		msg    string
	}{
		{"empty job", func(r *Run) { r.Job = " " }, "job", "must not be empty"},
		{"bad mode", func(r *Run) { r.Mode = "sometimes" }, "mode", "unknown mode"},
		{"bad domain", func(r *Run) { r.Domains = []string{"genes"} }, "domains", `unknown domain "genes"`},
		{"no kind", func(r *Run) { r.Storage.Kind = "" }, "storage.kind", "must not be empty"},
		{"bad kind", func(r *Run) { r.Storage.Kind = "mysql" }, "storage.kind", "unsupported storage kind"},
		{"no sources", func(r *Run) { r.Sources = nil }, "sources", "at least one source"},
		{"zero id", func(r *Run) { r.Sources[1].ID = 0 }, "sources[1].id", "must be positive"},
		{"duplicate id", func(r *Run) { r.Sources[1].ID = 100120 }, "sources[1].id", "listed twice"},
		{"no dsn", func(r *Run) { r.Storage.DSN = "" }, "sources[0].dsn", "no dsn"},
		{"test without schema", func(r *Run) { r.Test = true; r.Storage.TestSchema = "" }, "storage.test_schema", "test schema"},
		{"batch", func(r *Run) { r.Runtime.BatchSize = -1 }, "runtime.batch_size", "must be positive"},
		{"parallel", func(r *Run) { r.Runtime.Parallel = -2 }, "runtime.parallel", "must be positive"},
		{"unknown metrics", func(r *Run) { r.Metrics.Backend = "statsite" }, "metrics.backend", "unknown metrics backend"},
		{"shared target in parallel", func(r *Run) { r.Sources[1].Schema = "AD_100120" }, "sources[1]", "same target tables as sources[0]"},
		{"test run in parallel", func(r *Run) { r.Test = true }, "sources[1]", "cannot run in parallel"},
		{"datadog addr", func(r *Run) { r.Metrics.Backend = "datadog" }, "metrics.options.addr", "requires addr"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validRun()
			tc.mutate(&r)
			issues := ValidateRun(r)
			if !hasIssue(t, issues, SeverityError, tc.path, tc.msg) {
				t.Fatalf("expected error at %s containing %q; got %+v", tc.path, tc.msg, issues)
			}
			if !HasErrors(issues) {
				t.Fatal("HasErrors = false")
			}
		})
	}
}

func TestValidateRun_Warnings(t *testing.T) {
	t.Parallel()

	r := validRun()
	r.Storage.AggregateTable = ""
	r.Runtime.HeavyBatchSize = r.Runtime.BatchSize * 2
	r.Runtime.Parallel = 5
	r.Metrics.Backend = "pushgateway"
	r.Log.Level = "chatty"
	r.Sources[0].Schema = ""
	r.Storage.Schema = ""

	issues := ValidateRun(r)
	if HasErrors(issues) {
		t.Fatalf("expected warnings only, got %+v", issues)
	}
	for _, want := range []struct{ path, msg string }{
		{"storage.aggregate_table", "will not be recorded"},
		{"runtime.heavy_batch_size", "larger than batch_size"},
		{"runtime.parallel", "exceeds the 2 configured sources"},
		{"metrics.options.url", "PUSHGATEWAY_URL"},
		{"log.level", `unknown level "chatty"`},
		{"sources[0].schema", "search path"},
	} {
		if !hasIssue(t, issues, SeverityWarning, want.path, want.msg) {
			t.Errorf("missing warning at %s containing %q; got %+v", want.path, want.msg, issues)
		}
	}
}

func TestValidateRun_SharedTargetsRunSerially(t *testing.T) {
	t.Parallel()

	r := validRun()
	r.Test = true
	r.Runtime.Parallel = 1
	if issues := ValidateRun(r); HasErrors(issues) {
		t.Fatalf("serial test run should be valid, got %+v", issues)
	}

	// separate databases never share target tables
	r = validRun()
	r.Test = true
	r.Sources[0].DSN = "postgres://u@db1/mdr"
	r.Sources[1].DSN = "postgres://u@db2/mdr"
	if issues := ValidateRun(r); HasErrors(issues) {
		t.Fatalf("test run over separate databases should be valid, got %+v", issues)
	}
}

func TestIssue_Error(t *testing.T) {
	t.Parallel()
	iss := Issue{Severity: SeverityError, Path: "storage.kind", Message: "x"}
	if got := iss.Error(); got != "error at storage.kind: x" {
		t.Fatalf("Error() = %q", got)
	}
}
