// Package config defines the run file consumed by the coder binary: which
// store to connect to, which sources to code, which domains to run and how.
//
// Run files are JSON or YAML (chosen by extension). ${VAR} references are
// expanded from the environment before decoding, so credentials can live in a
// .env file loaded with LoadEnv.
//
// Example (YAML):
//
//	job: coder
//	storage:
//	  kind: postgres
//	  dsn: ${CODER_DSN}
//	  schema: ad
//	  catalog_schema: context_ctx
//	  aggregate_table: mon.unmatched_values
//	sources:
//	  - { id: 100120, name: ctg }
//	  - { id: 100126, name: isrctn, dsn: "${ISRCTN_DSN}" }
//	mode: incremental
//	domains: [organisations, topics]
//	metrics:
//	  backend: pushgateway
//	  options: { url: "http://localhost:9091" }
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"coder/internal/coding"
)

// Defaults applied by Load.
const (
	DefaultJob            = "coder"
	DefaultBatchSize      = 200000
	DefaultHeavyBatchSize = 100000
	DefaultParallel       = 1
	DefaultTestSchema     = "test"
)

// Run is the top-level object decoded from a run file.
type Run struct {
	// Job labels metrics and log lines.
	Job string `json:"job" yaml:"job"`

	Storage Storage  `json:"storage" yaml:"storage"`
	Sources []Source `json:"sources" yaml:"sources"`

	// Mode is "incremental" (default) or "recode-all".
	Mode string `json:"mode" yaml:"mode"`

	// Domains restricts the run; empty means all, in the fixed order.
	Domains []string `json:"domains" yaml:"domains"`

	// Test swaps every source's data schema for Storage.TestSchema.
	Test bool `json:"test" yaml:"test"`

	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
	Metrics Metrics       `json:"metrics" yaml:"metrics"`
	Log     Log           `json:"log" yaml:"log"`
}

// Storage selects the backend and the schemas a run works in.
type Storage struct {
	// Kind is a registered storage kind: postgres, sqlite or mssql.
	Kind string `json:"kind" yaml:"kind"`

	// DSN is the default connection string; sources may override it.
	DSN string `json:"dsn" yaml:"dsn"`

	// Schema holds the target tables. Sources may override it.
	Schema string `json:"schema" yaml:"schema"`

	TestSchema    string `json:"test_schema" yaml:"test_schema"`
	CatalogSchema string `json:"catalog_schema" yaml:"catalog_schema"`

	// AggregateTable is the dotted name of the unmatched-value table. Empty
	// disables aggregation.
	AggregateTable string `json:"aggregate_table" yaml:"aggregate_table"`
}

// Source is one dataset partition to code.
type Source struct {
	ID     int64  `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	DSN    string `json:"dsn" yaml:"dsn"`
	Schema string `json:"schema" yaml:"schema"`
}

// RuntimeConfig controls batching and how many sources run at once.
type RuntimeConfig struct {
	BatchSize      int `json:"batch_size" yaml:"batch_size"`
	HeavyBatchSize int `json:"heavy_batch_size" yaml:"heavy_batch_size"`
	Parallel       int `json:"parallel" yaml:"parallel"`
}

// Metrics selects a metrics backend and carries its options.
type Metrics struct {
	// Backend is "pushgateway", "datadog" or "none"/empty.
	Backend string `json:"backend" yaml:"backend"`

	// Options is backend specific:
	//   pushgateway: url (string)
	//   datadog:     addr (string), namespace (string), tags ([]string)
	Options Options `json:"options" yaml:"options"`
}

// Log configures the zerolog logger.
type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// DSNFor returns the source's DSN, falling back to the storage default.
func (r Run) DSNFor(s Source) string {
	if strings.TrimSpace(s.DSN) != "" {
		return s.DSN
	}
	return r.Storage.DSN
}

// SchemaFor returns the source's data schema, falling back to the storage
// default.
func (r Run) SchemaFor(s Source) string {
	if strings.TrimSpace(s.Schema) != "" {
		return s.Schema
	}
	return r.Storage.Schema
}

// NamespaceFor resolves the schemas a run of s works in, honouring Test.
func (r Run) NamespaceFor(s Source) coding.Namespace {
	return coding.Resolve(coding.Namespace{
		Data:      r.SchemaFor(s),
		Catalog:   r.Storage.CatalogSchema,
		Aggregate: r.Storage.AggregateTable,
	}, r.Test, r.Storage.TestSchema)
}

// Label names a source in logs: its name when set, else its id.
func (s Source) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("%d", s.ID)
}

// LoadEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// Load reads a run file, expands ${VAR} references and applies defaults.
func Load(path string) (Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Run{}, fmt.Errorf("read run file: %w", err)
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	r, err := Decode(data, format)
	if err != nil {
		return Run{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return r, nil
}

// Decode parses run file content in the given format ("json" or "yaml"),
// expanding environment references first.
func Decode(data []byte, format string) (Run, error) {
	expanded := []byte(os.ExpandEnv(string(data)))

	var r Run
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(expanded, &r); err != nil {
			return Run{}, err
		}
	case "json":
		if err := json.Unmarshal(expanded, &r); err != nil {
			return Run{}, err
		}
	default:
		return Run{}, fmt.Errorf("unsupported run file format %q", format)
	}
	r.ApplyDefaults()
	return r, nil
}

// ApplyDefaults fills unset fields.
func (r *Run) ApplyDefaults() {
	if strings.TrimSpace(r.Job) == "" {
		r.Job = DefaultJob
	}
	if r.Runtime.BatchSize == 0 {
		r.Runtime.BatchSize = DefaultBatchSize
	}
	if r.Runtime.HeavyBatchSize == 0 {
		r.Runtime.HeavyBatchSize = DefaultHeavyBatchSize
	}
	if r.Runtime.Parallel == 0 {
		r.Runtime.Parallel = DefaultParallel
	}
	if r.Storage.TestSchema == "" {
		r.Storage.TestSchema = DefaultTestSchema
	}
	if r.Log.Level == "" {
		r.Log.Level = "info"
	}
	if r.Log.Format == "" {
		r.Log.Format = "console"
	}
}

// Options is a small helper to fetch typed values from a free-form map
// decoded from JSON or YAML. It performs only minimal type coercion and
// returns the provided default when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// StringSlice returns a []string for key when the value is a list of strings.
// Non-string elements are skipped. Returns nil when the key is missing.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// UnmarshalJSON makes a missing or null options object decode to an empty,
// non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
