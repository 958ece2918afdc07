// Package domains defines the built-in target tables and match passes for
// each coding domain. A domain is plain configuration for the generic
// pipeline; no domain carries code of its own.
package domains

import (
	"fmt"
	"sort"
	"strings"

	"coder/internal/coding"
	"coder/internal/pipeline"
	"coder/internal/sqlbuild"
)

// Domain names, in the order a run processes them.
const (
	Organisations = "organisations"
	Locations     = "locations"
	Topics        = "topics"
	Conditions    = "conditions"
	Publishers    = "publishers"
)

// Order is the fixed processing order.
var Order = []string{Organisations, Locations, Topics, Conditions, Publishers}

// Env is what a domain needs to build its targets for one run.
type Env struct {
	Dialect        sqlbuild.Dialect
	NS             coding.Namespace
	BatchSize      int64 // typical tables
	HeavyBatchSize int64 // wide, multi-field tables
}

// Domain builds the targets of one domain.
type Domain struct {
	Name    string
	Targets func(Env) []pipeline.Target
}

var registry = map[string]Domain{}

func register(d Domain) { registry[d.Name] = d }

// Get returns the named domain.
func Get(name string) (Domain, bool) {
	d, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// Select returns the named domains in processing order. An empty list selects
// every domain.
func Select(names []string) ([]Domain, error) {
	if len(names) == 0 {
		names = Order
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if _, ok := registry[n]; !ok {
			return nil, fmt.Errorf("unknown domain %q (known: %s)", n, strings.Join(Known(), ", "))
		}
		want[n] = true
	}
	out := make([]Domain, 0, len(want))
	for _, n := range Order {
		if want[n] {
			out = append(out, registry[n])
		}
	}
	return out, nil
}

// Known lists registered domain names, sorted.
func Known() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (e Env) table(name, raw, resolved, display, parent string) coding.Table {
	return coding.NewTable(e.Dialect, e.NS, name, raw, resolved, display, parent)
}

// ref renders a catalog table as a FROM source with an alias.
func (e Env) ref(table, alias string) string {
	return sqlbuild.FQN(e.Dialect, e.NS.Ref(table)) + " AS " + alias
}

// target renders a table of the data schema as a FROM source with an alias.
func (e Env) target(table, alias string) string {
	return sqlbuild.FQN(e.Dialect, e.NS.Target(table)) + " AS " + alias
}

func (e Env) size(heavy bool) int64 {
	if heavy && e.HeavyBatchSize > 0 {
		return e.HeavyBatchSize
	}
	return e.BatchSize
}

func folded(col string) string { return "lower(trim(t." + col + "))" }
