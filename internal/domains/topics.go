package domains

import (
	"coder/internal/anomaly"
	"coder/internal/match"
	"coder/internal/noise"
	"coder/internal/pipeline"
	"coder/internal/sqlbuild"
)

// Controlled-term type ids of externally supplied codes.
const (
	termTypeICD10 = 12
	termTypeMeSH  = 14
)

func init() {
	register(Domain{Name: Topics, Targets: topicTargets})
}

func topicTargets(e Env) []pipeline.Target {
	return []pipeline.Target{
		topicTarget(e, "study_topics", "sd_sid"),
		topicTarget(e, "object_topics", "sd_oid"),
	}
}

func topicTarget(e Env, name, parent string) pipeline.Target {
	return pipeline.Target{
		Table:     e.table(name, "original_value", "mesh_code", "mesh_value", parent),
		Noun:      "MeSH codes",
		BatchSize: e.size(false),
		Denylist:  noise.Topics(),
		Passes: termPasses(e, termTypeMeSH, "mesh_terms", "mesh_lookup", "mesh_code", "mesh_value",
			"MeSH code", "MeSH term"),
		Split: &anomaly.Split{
			CopyColumns: []string{parent, "original_value", "original_ct_type_id", "original_ct_code", "coded_on"},
		},
		Collapse:  true,
		Aggregate: true,
	}
}

// termPasses codes a vocabulary column pair: by supplied code when the row's
// term type matches, then by looked-up entry text, then writes back the
// preferred term. Lookup entries may map to several codes joined by "//".
func termPasses(e Env, termType int, terms, lookup, code, name, codeLabel, termLabel string) []match.Pass {
	return []match.Pass{
		{
			Kind:  match.Code,
			Label: "coded by " + codeLabel,
			From:  []string{e.ref(terms, "v")},
			Join:  "t.original_ct_type_id = ? AND upper(trim(t.original_ct_code)) = v.code",
			Args:  []any{termType},
			Set:   []sqlbuild.Assign{{Column: code, Expr: "v.code"}},
		},
		{
			Kind:  match.Alias,
			Label: "coded by " + termLabel,
			From:  []string{e.ref(lookup, "l")},
			Join:  "l.entry = " + folded("original_value"),
			Set: []sqlbuild.Assign{
				{Column: code, Expr: "l.code"},
				{Column: name, Expr: "l.term"},
			},
		},
		{
			Kind:  match.Canonical,
			Label: "preferred " + termLabel + "s",
			From:  []string{e.ref(terms, "v")},
			Join:  "t." + code + " = v.code",
			Set:   []sqlbuild.Assign{{Column: name, Expr: "v.term"}},
		},
	}
}
