// Package coding holds the small value types shared by every stage of the
// reference-matching engine: the recode mode, the schema namespace a run
// works in, and the column layout of a target table.
package coding

import (
	"fmt"
	"strings"

	"coder/internal/sqlbuild"
)

// Fixed column names present on every target table.
const (
	IDColumn      = "id"
	CodedOnColumn = "coded_on"
)

// Mode selects between processing only uncoded rows and recoding everything.
type Mode int

const (
	// Incremental restricts every mutation to rows with coded_on IS NULL.
	Incremental Mode = iota
	// RecodeAll clears previous results and reprocesses every row.
	RecodeAll
)

// IncrementalOnly reports whether statements should carry the coded_on filter.
func (m Mode) IncrementalOnly() bool { return m != RecodeAll }

func (m Mode) String() string {
	if m == RecodeAll {
		return "recode-all"
	}
	return "incremental"
}

// ParseMode accepts "incremental" (or empty) and "recode-all" / "full".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "incremental":
		return Incremental, nil
	case "recode-all", "recode_all", "full", "all":
		return RecodeAll, nil
	default:
		return Incremental, fmt.Errorf("unknown mode %q (want incremental or recode-all)", s)
	}
}

// Namespace names the schemas a run reads and writes. It is resolved once at
// the start of a run and passed down unchanged.
type Namespace struct {
	Data      string // schema holding the source's target tables
	Catalog   string // schema holding the reference catalog
	Aggregate string // dotted name of the unmatched-value aggregate table
}

// Resolve returns the namespace for a run: test runs swap the data schema for
// testSchema.
func Resolve(base Namespace, test bool, testSchema string) Namespace {
	if test {
		base.Data = testSchema
	}
	return base
}

// Target returns the dotted name of a target table.
func (n Namespace) Target(table string) string { return sqlbuild.Qualify(n.Data, table) }

// Ref returns the dotted name of a catalog table.
func (n Namespace) Ref(table string) string { return sqlbuild.Qualify(n.Catalog, table) }

// Table describes one target table. Column names are trusted identifiers
// supplied by domain definitions, never user input.
type Table struct {
	Name     string // bare name, also recorded in the unmatched aggregate
	FQN      string // dialect-quoted, schema-qualified name
	Raw      string // free-text value to match
	Resolved string // resolved reference id or code
	Display  string // canonical display name written back, may be empty
	Parent   string // owning entity key, used by duplicate collapse
}

// NewTable quotes name within the namespace's data schema.
func NewTable(d sqlbuild.Dialect, ns Namespace, name, raw, resolved, display, parent string) Table {
	return Table{
		Name:     name,
		FQN:      sqlbuild.FQN(d, ns.Target(name)),
		Raw:      raw,
		Resolved: resolved,
		Display:  display,
		Parent:   parent,
	}
}
