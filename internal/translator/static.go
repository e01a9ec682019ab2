package translator

// staticSymptoms covers common symptom names when both the catalog and the
// suggestion endpoint come up empty.
var staticSymptoms = map[string]string{
	"itching":  "s_192",
	"redness":  "s_208",
	"swelling": "s_223",
	"fever":    "s_98",
	"fatigue":  "s_6",
	"pain":     "s_1849",
	"rash":     "s_2582",
}
