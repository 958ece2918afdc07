package domains

import (
	"coder/internal/anomaly"
	"coder/internal/noise"
	"coder/internal/pipeline"
)

func init() {
	register(Domain{Name: Conditions, Targets: conditionTargets})
}

func conditionTargets(e Env) []pipeline.Target {
	return []pipeline.Target{{
		Table:     e.table("study_conditions", "original_value", "icd_code", "icd_name", "sd_sid"),
		Noun:      "ICD codes",
		BatchSize: e.size(false),
		Denylist:  noise.Conditions(),
		Passes: termPasses(e, termTypeICD10, "icd_terms", "icd_lookup", "icd_code", "icd_name",
			"ICD code", "ICD term"),
		Split: &anomaly.Split{
			CopyColumns: []string{"sd_sid", "original_value", "original_ct_type_id", "original_ct_code", "coded_on"},
		},
		Aggregate: true,
	}}
}
