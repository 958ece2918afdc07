package domains

import (
	"coder/internal/match"
	"coder/internal/noise"
	"coder/internal/normalize"
	"coder/internal/pipeline"
	"coder/internal/sqlbuild"
)

// Catalog qualifier marking an organisation name as no longer in use.
const qualifierDeprecated = 10

// Contribution type of a study's sponsor in study_organisations.
const contribSponsor = 54

// Raw identifier organisations that stand for the study's own sponsor.
var sponsorPlaceholders = []any{"sponsor", "the sponsor", "study sponsor", "sponsor's code", "sponsor protocol"}

var orgPrefixes = []normalize.Prefix{{Text: "the", MinTokens: 3}}

func init() {
	register(Domain{Name: Organisations, Targets: organisationTargets})
}

func organisationTargets(e Env) []pipeline.Target {
	return []pipeline.Target{
		{
			Table:     e.table("study_organisations", "organisation_name", "organisation_id", "organisation_display", "sd_sid"),
			Noun:      "organisation ids",
			BatchSize: e.size(false),
			Denylist:  noise.Organisations(),
			Prefixes:  orgPrefixes,
			Passes:    orgPasses(e, "organisation_name", "organisation_id", "organisation_display", "organisation_ror_id"),
			Aggregate: true,
		},
		{
			// identifiers keep their row when the issuing body is unknown
			Table:     e.table("study_identifiers", "identifier_org", "identifier_org_id", "identifier_org_display", "sd_sid"),
			Noun:      "identifier organisation ids",
			BatchSize: e.size(false),
			Prefixes:  orgPrefixes,
			Passes: append(
				orgPasses(e, "identifier_org", "identifier_org_id", "identifier_org_display", "identifier_org_ror_id"),
				// study_organisations is coded first, so the sponsor row already
				// carries the canonical name and ROR id
				match.Pass{
					Kind:  match.Secondary,
					Label: "coded from study sponsor",
					From:  []string{e.target("study_organisations", "c")},
					Join: "c.sd_sid = t.sd_sid AND c.contrib_type_id = ? AND c.organisation_id IS NOT NULL AND " +
						sqlbuild.In(folded("identifier_org"), len(sponsorPlaceholders)),
					Args: append([]any{contribSponsor}, sponsorPlaceholders...),
					Set: []sqlbuild.Assign{
						{Column: "identifier_org_id", Expr: "c.organisation_id"},
						{Column: "identifier_org_display", Expr: "c.organisation_display"},
						{Column: "identifier_org_ror_id", Expr: "c.organisation_ror_id"},
					},
				},
			),
			Aggregate: true,
		},
	}
}

// orgPasses codes an organisation column set by ROR id, then by name, then
// writes back the canonical name (with any display suffix) and ROR id.
func orgPasses(e Env, raw, id, display, ror string) []match.Pass {
	return []match.Pass{
		{
			Kind:  match.Code,
			Label: "coded by ROR id",
			From:  []string{e.ref("orgs", "r")},
			Join:  "t." + ror + " = r.ror_id",
			Set:   []sqlbuild.Assign{{Column: id, Expr: "r.id"}},
		},
		{
			Kind:  match.Alias,
			Label: "coded by organisation name",
			From:  []string{e.ref("org_names", "n")},
			Join:  "n.norm_name = " + folded(raw) + " AND n.qualifier_id <> ?",
			Args:  []any{qualifierDeprecated},
			Set:   []sqlbuild.Assign{{Column: id, Expr: "n.org_id"}},
		},
		{
			Kind:  match.Canonical,
			Label: "canonical organisation names",
			From:  []string{e.ref("orgs", "r")},
			Join:  "t." + id + " = r.id",
			Set: []sqlbuild.Assign{
				{Column: display, Expr: "CONCAT(r.default_name, r.display_suffix)"},
				{Column: ror, Expr: "r.ror_id"},
			},
		},
	}
}
