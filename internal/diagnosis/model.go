package diagnosis

import (
	"github.com/healthsync/symptom-triage/internal/evidence"
)

// TriageLevel is the oracle's urgency classification.
type TriageLevel string

const (
	TriageEmergency      TriageLevel = "emergency"
	TriageConsultation24 TriageLevel = "consultation_24"
	TriageConsultation   TriageLevel = "consultation"
	TriageSelfCare       TriageLevel = "self_care"
	TriageUnknown        TriageLevel = "unknown"
)

var triageMessages = map[TriageLevel]string{
	TriageEmergency:      "Seek immediate medical attention.",
	TriageConsultation24: "See a doctor within 24 hours.",
	TriageConsultation:   "Consult a doctor soon.",
	TriageSelfCare:       "Manage at home; monitor symptoms.",
	TriageUnknown:        "Still assessing condition.",
}

// AssessingMessage accompanies a triage that could not be determined.
const AssessingMessage = "We are still assessing your condition."

// ParseTriageLevel maps the oracle's level string, folding unknown values
// into TriageUnknown.
func ParseTriageLevel(s string) TriageLevel {
	l := TriageLevel(s)
	if _, ok := triageMessages[l]; ok {
		return l
	}
	return TriageUnknown
}

// Recommendation is the fixed sentence shown for a level.
func (l TriageLevel) Recommendation() string {
	if msg, ok := triageMessages[l]; ok {
		return msg
	}
	return triageMessages[TriageUnknown]
}

// Triage is the result of a triage request.
type Triage struct {
	Level   TriageLevel `json:"triage_level"`
	Message string      `json:"message"`
}

// UnknownTriage is returned whenever triage cannot be determined.
func UnknownTriage() Triage {
	return Triage{Level: TriageUnknown, Message: AssessingMessage}
}

// Condition is one ranked entry of a differential.
type Condition struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
}

// Differential is the normalized output of a diagnosis call.
type Differential struct {
	Conditions []Condition
	Question   *evidence.PendingQuestion
	ShouldStop bool
}

// Top returns the most probable condition, or a zero-probability
// placeholder when there are none.
func (d *Differential) Top() Condition {
	top := Condition{Name: "Unknown"}
	for i, c := range d.Conditions {
		if i == 0 || c.Probability > top.Probability {
			top = c
		}
	}
	return top
}
