package noise

// Placeholder groups shared by several domains.
var (
	missing = Group{Name: "missing", Values: []string{
		"n/a", "na", "n.a.", "n.a", "nil", "none", "null", "-", "--", ".", "?",
		"not applicable", "not available", "not provided", "not specified",
		"not stated", "not known", "unknown", "unspecified", "no", "tbd", "tba",
		"to be determined", "to be confirmed", "pending",
	}}

	references = Group{Name: "reference", Values: []string{
		"see above", "see below", "as above", "same as above", "see attached",
		"see protocol", "see description", "refer to protocol",
	}}
)

// Organisations lists raw organisation names that carry no identity.
func Organisations() *Denylist {
	return MustDenylist(missing, references,
		Group{Name: "generic organisation", Values: []string{
			"investigator", "principal investigator", "the investigator",
			"individual", "private", "self", "self-funded", "self funded",
			"no sponsor", "none - self funded", "company", "university",
			"hospital", "the hospital", "clinic", "institution", "department",
			"foundation", "government", "industry", "pharmaceutical company",
		}},
		Group{Name: "role", Values: []string{
			"sponsor-investigator", "collaborator", "funder", "lead sponsor",
			"study sponsor", "trial sponsor",
		}},
	)
}

// Locations lists raw place names that cannot be geocoded.
func Locations() *Denylist {
	return MustDenylist(missing, references,
		Group{Name: "generic place", Values: []string{
			"multiple", "multiple countries", "multiple locations", "various",
			"worldwide", "international", "global", "multinational",
			"many countries", "europe", "eu", "other", "others",
		}},
	)
}

// Topics lists raw topic strings that are not subjects.
func Topics() *Denylist {
	return MustDenylist(missing, references,
		Group{Name: "generic topic", Values: []string{
			"healthy", "healthy volunteer", "healthy volunteers",
			"healthy subjects", "healthy participants", "volunteers",
			"human", "humans", "adult", "adults", "child", "children",
			"male", "female", "men", "women", "patients", "study", "trial",
			"clinical trial", "research", "other", "others", "general",
		}},
	)
}

// Conditions lists raw condition strings that are not diagnoses.
func Conditions() *Denylist {
	return MustDenylist(missing, references,
		Group{Name: "generic condition", Values: []string{
			"healthy", "healthy volunteer", "healthy volunteers",
			"healthy subjects", "healthy participants", "normal volunteers",
			"disease", "diseases", "condition", "conditions", "illness",
			"other", "others", "various", "general", "no condition",
		}},
	)
}

// Publishers lists raw publisher names that name no publisher.
func Publishers() *Denylist {
	return MustDenylist(missing, Group{Name: "generic publisher", Values: []string{
		"publisher", "self-published", "self published", "various",
	}})
}
