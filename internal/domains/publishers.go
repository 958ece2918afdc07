package domains

import (
	"coder/internal/match"
	"coder/internal/noise"
	"coder/internal/pipeline"
	"coder/internal/sqlbuild"
)

func init() {
	register(Domain{Name: Publishers, Targets: publisherTargets})
}

func publisherTargets(e Env) []pipeline.Target {
	return []pipeline.Target{{
		Table:     e.table("object_publishers", "publisher_name", "publisher_id", "publisher_display", "sd_oid"),
		Noun:      "publisher ids",
		BatchSize: e.size(false),
		Denylist:  noise.Publishers(),
		Passes: []match.Pass{
			{
				Kind:  match.Code,
				Label: "coded by ISSN",
				From:  []string{e.ref("publisher_issns", "i")},
				Join:  "(i.issn = t.pissn OR i.issn = t.eissn)",
				Set:   []sqlbuild.Assign{{Column: "publisher_id", Expr: "i.publisher_id"}},
			},
			{
				Kind:  match.Alias,
				Label: "coded by publisher name",
				From:  []string{e.ref("publisher_names", "n")},
				Join:  "n.alt_name = " + folded("publisher_name"),
				Set:   []sqlbuild.Assign{{Column: "publisher_id", Expr: "n.publisher_id"}},
			},
			{
				Kind:  match.Canonical,
				Label: "canonical publisher names",
				From:  []string{e.ref("publishers", "p")},
				Join:  "t.publisher_id = p.id",
				Set:   []sqlbuild.Assign{{Column: "publisher_display", Expr: "p.name"}},
			},
		},
		Aggregate: true,
	}}
}
