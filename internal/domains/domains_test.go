package domains

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coder/internal/batch"
	"coder/internal/coding"
	"coder/internal/match"
	"coder/internal/pipeline"
	"coder/internal/sqlbuild"
	"coder/internal/storage"
	"coder/internal/storage/sqlite/sqlitetest"
)

func TestSelect(t *testing.T) {
	t.Parallel()

	all, err := Select(nil)
	require.NoError(t, err)
	assert.Equal(t, Order, names(all))

	some, err := Select([]string{"Publishers", " topics", "organisations"})
	require.NoError(t, err)
	assert.Equal(t, []string{Organisations, Topics, Publishers}, names(some))

	_, err = Select([]string{"genes"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown domain "genes"`)

	assert.ElementsMatch(t, Order, Known())
}

func names(ds []Domain) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Name)
	}
	return out
}

func TestTargets_Postgres(t *testing.T) {
	t.Parallel()
	e := Env{
		Dialect:        sqlbuild.Postgres{},
		NS:             coding.Namespace{Data: "ad", Catalog: "context_ctx"},
		BatchSize:      200000,
		HeavyBatchSize: 100000,
	}
	for _, name := range Order {
		d, ok := Get(name)
		require.True(t, ok, name)
		for _, tg := range d.Targets(e) {
			assert.NotEmpty(t, tg.Passes, tg.Table.Name)
			assert.Positive(t, tg.BatchSize, tg.Table.Name)
			assert.True(t, tg.Aggregate, tg.Table.Name)
			assert.Contains(t, tg.Table.FQN, `"ad".`, tg.Table.Name)
			for _, p := range tg.Passes {
				for _, f := range p.From {
					assert.Regexp(t, `^"(ad|context_ctx)"\."[a-z_]+" AS [a-z]$`, f)
				}
			}
			assert.Equal(t, tg.Collapse, name == Topics, tg.Table.Name)
			if tg.Table.Name == "study_locations" {
				assert.Equal(t, int64(100000), tg.BatchSize)
			}
		}
	}
}

func run(t *testing.T, s storage.Store, domain string) []pipeline.Outcome {
	t.Helper()
	d, ok := Get(domain)
	require.True(t, ok)
	exec := batch.NewExecutor(s, zerolog.Nop(), "test")
	p := pipeline.New(exec, coding.Incremental, 1, nil)

	var outs []pipeline.Outcome
	for _, tg := range d.Targets(Env{Dialect: s.Dialect(), BatchSize: 3, HeavyBatchSize: 2}) {
		out, err := p.Run(context.Background(), tg)
		require.NoError(t, err, tg.Table.Name)
		outs = append(outs, out)
	}
	return outs
}

func TestOrganisations_SponsorPassRunsLast(t *testing.T) {
	t.Parallel()
	ts := organisationTargets(Env{Dialect: sqlbuild.Postgres{}, BatchSize: 10, HeavyBatchSize: 5})
	require.Len(t, ts, 2)
	var kinds []match.Kind
	for _, p := range ts[1].Passes {
		kinds = append(kinds, p.Kind)
	}
	assert.Equal(t, []match.Kind{match.Code, match.Alias, match.Canonical, match.Secondary}, kinds)
}

func TestOrganisations(t *testing.T) {
	t.Parallel()
	s := sqlitetest.New(t)
	sqlitetest.Exec(t, s,
		`CREATE TABLE "orgs" (id INTEGER PRIMARY KEY, default_name TEXT, display_suffix TEXT, ror_id TEXT)`,
		`CREATE TABLE "org_names" (org_id INTEGER, norm_name TEXT, qualifier_id INTEGER)`,
		`CREATE TABLE "study_organisations" (id INTEGER PRIMARY KEY, sd_sid TEXT, contrib_type_id INTEGER,
			organisation_name TEXT, organisation_ror_id TEXT, organisation_id INTEGER, organisation_display TEXT, coded_on TEXT)`,
		`CREATE TABLE "study_identifiers" (id INTEGER PRIMARY KEY, sd_sid TEXT, identifier_value TEXT,
			identifier_org TEXT, identifier_org_ror_id TEXT, identifier_org_id INTEGER, identifier_org_display TEXT, coded_on TEXT)`,
		`INSERT INTO "orgs" VALUES (100, 'University of Oxford', NULL, '052gg0110'), (300, 'Pfizer', ' (USA)', '01xdqrp08')`,
		`INSERT INTO "org_names" VALUES (100, 'university of oxford', 1), (300, 'pfizer inc', 1), (300, 'pfizer old', 10)`,
		`INSERT INTO "study_organisations" (id, sd_sid, contrib_type_id, organisation_name, organisation_ror_id) VALUES
			(1, 'S1', 54, 'The University of Oxford', NULL),
			(2, 'S2', 54, 'Anything', '01xdqrp08'),
			(3, 'S2', 55, 'Not Applicable', NULL),
			(4, 'S3', 54, 'pfizer old', NULL)`,
		`INSERT INTO "study_identifiers" (id, sd_sid, identifier_value, identifier_org) VALUES
			(1, 'S1', 'OX-1', 'Sponsor'),
			(2, 'S2', 'PF-9', 'sponsor''s code'),
			(3, 'S3', 'X-3', 'sponsor'),
			(4, 'S1', 'NCT0001', 'Unknown Registry')`,
	)

	outs := run(t, s, Organisations)
	require.Len(t, outs, 2)
	assert.Equal(t, int64(1), outs[0].Removed)
	assert.Equal(t, int64(1), outs[0].Normalized)

	assert.Equal(t, []string{"University of Oxford", "Pfizer (USA)", "<nil>"},
		sqlitetest.Strings(t, s, `SELECT organisation_display FROM "study_organisations" ORDER BY id`))
	assert.Equal(t, []string{"052gg0110", "01xdqrp08", "<nil>"},
		sqlitetest.Strings(t, s, `SELECT organisation_ror_id FROM "study_organisations" ORDER BY id`))

	// S3's sponsor uses a deprecated name, so its identifier stays unresolved
	assert.Equal(t, []string{"University of Oxford", "Pfizer (USA)", "<nil>", "<nil>"},
		sqlitetest.Strings(t, s, `SELECT identifier_org_display FROM "study_identifiers" ORDER BY id`))
	assert.Equal(t, []string{"052gg0110", "01xdqrp08", "<nil>", "<nil>"},
		sqlitetest.Strings(t, s, `SELECT identifier_org_ror_id FROM "study_identifiers" ORDER BY id`))
	assert.Equal(t, int64(2), outs[1].Matched[match.Secondary])
	assert.Zero(t, sqlitetest.Int(t, s,
		`SELECT COUNT(*) FROM "study_identifiers" WHERE (coded_on IS NULL) <> (identifier_org_id IS NULL)`))
}

func TestLocations(t *testing.T) {
	t.Parallel()
	s := sqlitetest.New(t)
	sqlitetest.Exec(t, s,
		`CREATE TABLE "countries" (id INTEGER PRIMARY KEY, name TEXT, iso_code TEXT)`,
		`CREATE TABLE "country_names" (country_id INTEGER, alt_name TEXT)`,
		`CREATE TABLE "cities" (id INTEGER PRIMARY KEY, name TEXT, country_id INTEGER, country_name TEXT)`,
		`CREATE TABLE "city_names" (city_id INTEGER, alt_name TEXT)`,
		`CREATE TABLE "study_countries" (id INTEGER PRIMARY KEY, sd_sid TEXT, country_name TEXT, country_iso TEXT,
			country_id INTEGER, country_display TEXT, coded_on TEXT)`,
		`CREATE TABLE "study_locations" (id INTEGER PRIMARY KEY, sd_sid TEXT, facility TEXT, city_name TEXT,
			country_name TEXT, city_id INTEGER, city_display TEXT, country_id INTEGER, country_display TEXT, coded_on TEXT)`,
		`INSERT INTO "countries" VALUES (3017382, 'France', 'FR'), (2635167, 'United Kingdom', 'GB')`,
		`INSERT INTO "country_names" VALUES (3017382, 'france'), (2635167, 'uk'), (2635167, 'united kingdom')`,
		`INSERT INTO "cities" VALUES (2988507, 'Paris', 3017382, 'France'), (2643743, 'London', 2635167, 'United Kingdom'),
			(4517009, 'London', 6251999, 'Canada')`,
		`INSERT INTO "city_names" VALUES (2988507, 'paris'), (2643743, 'london'), (4517009, 'london')`,
		`INSERT INTO "study_countries" (id, sd_sid, country_name, country_iso) VALUES
			(1, 'S1', 'U.K.', 'gb'), (2, 'S1', 'france', NULL), (3, 'S2', 'Multiple', NULL), (4, 'S2', 'Atlantis', NULL)`,
		`INSERT INTO "study_locations" (id, sd_sid, facility, city_name, country_name) VALUES
			(1, 'S1', 'Hopital X', 'Paris', 'France'),
			(2, 'S1', 'Clinic Y', 'London', 'United Kingdom'),
			(3, 'S2', 'Site Z', 'London', 'Canada'),
			(4, 'S2', 'Site W', 'unknown', NULL),
			(5, 'S3', 'Site V', 'Springfield', NULL)`,
	)

	outs := run(t, s, Locations)
	require.Len(t, outs, 2)
	assert.Equal(t, int64(1), outs[0].Removed)
	assert.Equal(t, []string{"United Kingdom", "France", "<nil>"},
		sqlitetest.Strings(t, s, `SELECT country_display FROM "study_countries" ORDER BY id`))

	assert.Zero(t, outs[1].Removed)
	assert.Equal(t, int64(5), outs[1].Coverage.Total)
	assert.Equal(t, []string{"2988507", "2643743", "4517009", "<nil>", "<nil>"},
		sqlitetest.Strings(t, s, `SELECT CAST(city_id AS TEXT) FROM "study_locations" ORDER BY id`))
	assert.Equal(t, []string{"France", "United Kingdom", "Canada", "<nil>", "<nil>"},
		sqlitetest.Strings(t, s, `SELECT country_display FROM "study_locations" ORDER BY id`))
}

func TestConditions_SplitsMultiCodeTerms(t *testing.T) {
	t.Parallel()
	s := sqlitetest.New(t)
	sqlitetest.Exec(t, s,
		`CREATE TABLE "icd_terms" (code TEXT PRIMARY KEY, term TEXT)`,
		`CREATE TABLE "icd_lookup" (entry TEXT, code TEXT, term TEXT)`,
		`CREATE TABLE "study_conditions" (id INTEGER PRIMARY KEY, sd_sid TEXT, original_value TEXT,
			original_ct_type_id INTEGER, original_ct_code TEXT, icd_code TEXT, icd_name TEXT, coded_on TEXT)`,
		`INSERT INTO "icd_terms" VALUES ('E11', 'Type 2 diabetes mellitus'), ('I10', 'Essential hypertension'), ('J45', 'Asthma')`,
		`INSERT INTO "icd_lookup" VALUES ('diabetes and hypertension', 'E11//I10', 'Diabetes//Hypertension')`,
		`INSERT INTO "study_conditions" (id, sd_sid, original_value, original_ct_type_id, original_ct_code) VALUES
			(1, 'S1', 'Diabetes and Hypertension', NULL, NULL),
			(2, 'S1', 'asthma', 12, ' j45 '),
			(3, 'S2', 'Healthy Volunteers', NULL, NULL)`,
	)

	outs := run(t, s, Conditions)
	require.Len(t, outs, 1)
	assert.Equal(t, int64(1), outs[0].Removed)
	assert.Equal(t, int64(2), outs[0].Split.Inserted)
	assert.Equal(t, []string{"J45", "E11", "I10"},
		sqlitetest.Strings(t, s, `SELECT icd_code FROM "study_conditions" ORDER BY id`))
	// split components pick up the preferred terms
	assert.Equal(t, []string{"Asthma", "Type 2 diabetes mellitus", "Essential hypertension"},
		sqlitetest.Strings(t, s, `SELECT icd_name FROM "study_conditions" ORDER BY id`))
	assert.Equal(t, int64(2), sqlitetest.Int(t, s,
		`SELECT COUNT(*) FROM "study_conditions" WHERE original_value = 'Diabetes and Hypertension'`))
}

func TestPublishers(t *testing.T) {
	t.Parallel()
	s := sqlitetest.New(t)
	sqlitetest.Exec(t, s,
		`CREATE TABLE "publishers" (id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE "publisher_issns" (issn TEXT, publisher_id INTEGER)`,
		`CREATE TABLE "publisher_names" (alt_name TEXT, publisher_id INTEGER)`,
		`CREATE TABLE "object_publishers" (id INTEGER PRIMARY KEY, sd_oid TEXT, publisher_name TEXT, pissn TEXT, eissn TEXT,
			publisher_id INTEGER, publisher_display TEXT, coded_on TEXT)`,
		`INSERT INTO "publishers" VALUES (1, 'Elsevier'), (2, 'Springer Nature')`,
		`INSERT INTO "publisher_issns" VALUES ('0140-6736', 1), ('1474-547X', 1)`,
		`INSERT INTO "publisher_names" VALUES ('springer', 2), ('springer nature', 2)`,
		`INSERT INTO "object_publishers" (id, sd_oid, publisher_name, pissn, eissn) VALUES
			(1, 'O1', 'Lancet Publishing Group', NULL, '1474-547X'),
			(2, 'O2', 'Springer', NULL, NULL),
			(3, 'O3', 'N/A', NULL, NULL),
			(4, 'O4', 'Small Press', '9999-9999', NULL)`,
	)

	outs := run(t, s, Publishers)
	require.Len(t, outs, 1)
	assert.Equal(t, int64(1), outs[0].Removed)
	assert.Equal(t, map[match.Kind]int64{match.Code: 1, match.Alias: 1, match.Canonical: 2}, outs[0].Matched)
	assert.Equal(t, []string{"Elsevier", "Springer Nature", "<nil>"},
		sqlitetest.Strings(t, s, `SELECT publisher_display FROM "object_publishers" ORDER BY id`))
	assert.Equal(t, "2 records, from 3, 66.7%, have publisher ids coded in object_publishers", outs[0].Coverage.String())
}
