// Package noise removes rows whose raw value is a known placeholder ("n/a",
// "unknown", "see above") before any matching is attempted, so noise can never
// consume a real match.
package noise

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Group is a named set of placeholder strings. Groups exist for
// maintainability only; a Denylist behaves as their union.
type Group struct {
	Name   string
	Values []string
}

// Denylist is an immutable set of disjoint, normalised groups.
type Denylist struct {
	groups []Group
	all    map[string]string // value -> group name
}

var fold = cases.Lower(language.Und)

// Normalize applies the comparison form used on both sides of the filter:
// NFC, trimmed, lower case.
func Normalize(s string) string {
	return fold.String(strings.TrimSpace(norm.NFC.String(s)))
}

// NewDenylist normalises every value, drops duplicates inside a group and
// rejects values that appear in more than one group.
func NewDenylist(groups ...Group) (*Denylist, error) {
	d := &Denylist{all: make(map[string]string)}
	for _, g := range groups {
		if g.Name == "" {
			return nil, fmt.Errorf("noise: group without a name")
		}
		out := Group{Name: g.Name}
		for _, v := range g.Values {
			n := Normalize(v)
			if n == "" {
				continue
			}
			if other, dup := d.all[n]; dup {
				if other == g.Name {
					continue
				}
				return nil, fmt.Errorf("noise: %q is in both %s and %s", n, other, g.Name)
			}
			d.all[n] = g.Name
			out.Values = append(out.Values, n)
		}
		if len(out.Values) > 0 {
			d.groups = append(d.groups, out)
		}
	}
	return d, nil
}

// MustDenylist is NewDenylist for built-in lists; it panics on error.
func MustDenylist(groups ...Group) *Denylist {
	d, err := NewDenylist(groups...)
	if err != nil {
		panic(err)
	}
	return d
}

// Groups returns the normalised groups in declaration order.
func (d *Denylist) Groups() []Group {
	if d == nil {
		return nil
	}
	return d.groups
}

// Contains reports whether v, after normalisation, is denied.
func (d *Denylist) Contains(v string) bool {
	if d == nil {
		return false
	}
	_, ok := d.all[Normalize(v)]
	return ok
}

// Len is the number of distinct denied values.
func (d *Denylist) Len() int {
	if d == nil {
		return 0
	}
	return len(d.all)
}
