package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// -----------------------------------------------------------------------------
// Run file decoding tests
// -----------------------------------------------------------------------------
//
// Run files are parsed from strings to keep the tests hermetic; Load is
// exercised once against a temp file to cover extension sniffing.

const runYAML = `
job: nightly
storage:
  kind: postgres
  dsn: ${CODER_TEST_DSN}
  schema: ad
  catalog_schema: context_ctx
  aggregate_table: mon.unmatched_values
sources:
  - { id: 100120, name: ctg }
  - id: 100126
    dsn: postgres://other/db
    schema: isrctn
mode: recode-all
domains: [topics, conditions]
runtime:
  batch_size: 50000
metrics:
  backend: datadog
  options:
    addr: 127.0.0.1:8125
    tags: ["env:test", "team:data"]
`

func TestDecode_YAML(t *testing.T) {
	t.Setenv("CODER_TEST_DSN", "postgres://u:p@db:5432/mdr")

	r, err := Decode([]byte(runYAML), "yaml")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if r.Job != "nightly" || r.Mode != "recode-all" {
		t.Fatalf("job/mode = %q/%q", r.Job, r.Mode)
	}
	if r.Storage.DSN != "postgres://u:p@db:5432/mdr" {
		t.Fatalf("dsn not expanded: %q", r.Storage.DSN)
	}
	if got, want := r.Domains, []string{"topics", "conditions"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("domains = %v, want %v", got, want)
	}
	if len(r.Sources) != 2 || r.Sources[0].ID != 100120 || r.Sources[1].Schema != "isrctn" {
		t.Fatalf("sources = %+v", r.Sources)
	}
	if r.Runtime.BatchSize != 50000 || r.Runtime.HeavyBatchSize != DefaultHeavyBatchSize || r.Runtime.Parallel != 1 {
		t.Fatalf("runtime = %+v", r.Runtime)
	}
	if got := r.Metrics.Options.StringSlice("tags"); !reflect.DeepEqual(got, []string{"env:test", "team:data"}) {
		t.Fatalf("tags = %v", got)
	}
	if r.Metrics.Options.String("addr", "") != "127.0.0.1:8125" {
		t.Fatalf("addr = %q", r.Metrics.Options.String("addr", ""))
	}
}

func TestDecode_JSONDefaults(t *testing.T) {
	t.Parallel()

	r, err := Decode([]byte(`{"storage": {"kind": "sqlite", "dsn": "file:x.db"}, "sources": [{"id": 1}], "metrics": null}`), "json")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Job != DefaultJob {
		t.Errorf("job = %q", r.Job)
	}
	if r.Runtime.BatchSize != DefaultBatchSize {
		t.Errorf("batch = %d", r.Runtime.BatchSize)
	}
	if r.Storage.TestSchema != DefaultTestSchema {
		t.Errorf("test schema = %q", r.Storage.TestSchema)
	}
	if r.Log.Level != "info" || r.Log.Format != "console" {
		t.Errorf("log = %+v", r.Log)
	}
}

func TestDecode_UnknownFormat(t *testing.T) {
	t.Parallel()
	if _, err := Decode([]byte(`job = "x"`), "toml"); err == nil {
		t.Fatal("expected error for toml")
	}
}

func TestLoad_PicksFormatByExtension(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	yml := filepath.Join(dir, "run.yml")
	if err := os.WriteFile(yml, []byte("job: from-yaml\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	js := filepath.Join(dir, "run.json")
	if err := os.WriteFile(js, []byte(`{"job": "from-json"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	for path, want := range map[string]string{yml: "from-yaml", js: "from-json"} {
		r, err := Load(path)
		if err != nil {
			t.Fatalf("Load(%s): %v", path, err)
		}
		if r.Job != want {
			t.Errorf("Load(%s).Job = %q, want %q", path, r.Job, want)
		}
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	if err := os.WriteFile(env, []byte("CODER_ENV_A=from-file\nCODER_ENV_B=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CODER_ENV_B", "already-set")
	t.Cleanup(func() { os.Unsetenv("CODER_ENV_A") })

	if err := LoadEnv(env, filepath.Join(dir, "absent.env")); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("CODER_ENV_A"); got != "from-file" {
		t.Errorf("CODER_ENV_A = %q", got)
	}
	if got := os.Getenv("CODER_ENV_B"); got != "already-set" {
		t.Errorf("CODER_ENV_B = %q, existing variables must win", got)
	}
}

func TestRun_SourceFallbacks(t *testing.T) {
	t.Parallel()
	r := Run{Storage: Storage{DSN: "default", Schema: "ad"}}

	if got := r.DSNFor(Source{ID: 1}); got != "default" {
		t.Errorf("DSNFor = %q", got)
	}
	if got := r.DSNFor(Source{ID: 1, DSN: "own"}); got != "own" {
		t.Errorf("DSNFor = %q", got)
	}
	if got := r.SchemaFor(Source{ID: 1, Schema: "x"}); got != "x" {
		t.Errorf("SchemaFor = %q", got)
	}
	if got := (Source{ID: 7}).Label(); got != "7" {
		t.Errorf("Label = %q", got)
	}
	if got := (Source{ID: 7, Name: "ctg"}).Label(); got != "ctg" {
		t.Errorf("Label = %q", got)
	}
}

func TestOptions(t *testing.T) {
	t.Parallel()
	o := Options{"s": "x", "n": 3.0, "l": []any{"a", 1, "b"}}

	if o.String("s", "d") != "x" || o.String("n", "d") != "d" || o.String("missing", "d") != "d" {
		t.Error("String defaults")
	}
	if got := o.StringSlice("l"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("StringSlice = %v", got)
	}
	if o.StringSlice("missing") != nil {
		t.Error("StringSlice on missing key should be nil")
	}

	var empty Options
	if err := empty.UnmarshalJSON([]byte("null")); err != nil || empty == nil {
		t.Errorf("null options: %v %v", empty, err)
	}
}
