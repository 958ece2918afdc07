package domains

import (
	"coder/internal/match"
	"coder/internal/noise"
	"coder/internal/pipeline"
	"coder/internal/sqlbuild"
)

func init() {
	register(Domain{Name: Locations, Targets: locationTargets})
}

func locationTargets(e Env) []pipeline.Target {
	return []pipeline.Target{
		{
			Table:     e.table("study_countries", "country_name", "country_id", "country_display", "sd_sid"),
			Noun:      "geonames country ids",
			BatchSize: e.size(false),
			Denylist:  noise.Locations(),
			Passes: []match.Pass{
				{
					Kind:  match.Code,
					Label: "coded by ISO country code",
					From:  []string{e.ref("countries", "r")},
					Join:  "upper(trim(t.country_iso)) = r.iso_code",
					Set:   []sqlbuild.Assign{{Column: "country_id", Expr: "r.id"}},
				},
				{
					Kind:  match.Alias,
					Label: "coded by country name",
					From:  []string{e.ref("country_names", "n")},
					Join:  "n.alt_name = " + folded("country_name"),
					Set:   []sqlbuild.Assign{{Column: "country_id", Expr: "n.country_id"}},
				},
				{
					Kind:  match.Canonical,
					Label: "canonical country names",
					From:  []string{e.ref("countries", "r")},
					Join:  "t.country_id = r.id",
					Set:   []sqlbuild.Assign{{Column: "country_display", Expr: "r.name"}},
				},
			},
			Aggregate: true,
		},
		{
			// a facility row is kept even when its city is a placeholder
			Table:      e.table("study_locations", "city_name", "city_id", "city_display", "sd_sid"),
			Noun:       "geonames city ids",
			BatchSize:  e.size(true),
			ResetExtra: []string{"country_id", "country_display"},
			Passes: []match.Pass{
				{
					Kind:  match.Alias,
					Label: "coded by city and country name",
					From:  []string{e.ref("city_names", "n"), e.ref("cities", "c")},
					Join: "n.alt_name = " + folded("city_name") + " AND c.id = n.city_id" +
						" AND (t.country_name IS NULL OR lower(c.country_name) = " + folded("country_name") + ")",
					Set: []sqlbuild.Assign{{Column: "city_id", Expr: "c.id"}},
				},
				{
					Kind:  match.Canonical,
					Label: "canonical city and country names",
					From:  []string{e.ref("cities", "c")},
					Join:  "t.city_id = c.id",
					Set: []sqlbuild.Assign{
						{Column: "city_display", Expr: "c.name"},
						{Column: "country_id", Expr: "c.country_id"},
						{Column: "country_display", Expr: "c.country_name"},
					},
				},
			},
			Aggregate: true,
		},
	}
}
