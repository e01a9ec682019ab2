// Package biometrics turns manually entered vitals into interview evidence
// and serves the wearable vitals views.
package biometrics

import (
	"fmt"
	"strconv"

	"github.com/healthsync/symptom-triage/internal/evidence"
)

// Symptom ids asserted when a manual reading crosses its threshold.
const (
	FeverSymptomID        = "s_98"
	HypertensionSymptomID = "s_99"
)

const (
	FeverTemperature      = 38.0
	HypertensionSystolic  = 140
	HypertensionDiastolic = 90
)

// BloodPressure is a systolic/diastolic pair in mmHg.
type BloodPressure struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

// ManualVitals are readings the user typed in. They belong to the user,
// not to an interview, and survive session resets.
type ManualVitals struct {
	Temperature   *float64       `json:"temperature,omitempty"`
	BloodPressure *BloodPressure `json:"blood_pressure,omitempty"`
}

// IsZero reports whether nothing has been recorded.
func (m ManualVitals) IsZero() bool {
	return m.Temperature == nil && m.BloodPressure == nil
}

// Merge overlays the readings present in update onto m.
func (m ManualVitals) Merge(update ManualVitals) ManualVitals {
	if update.Temperature != nil {
		t := *update.Temperature
		m.Temperature = &t
	}
	if update.BloodPressure != nil {
		bp := *update.BloodPressure
		m.BloodPressure = &bp
	}
	return m
}

// Fold returns the evidence implied by the manual readings. It is called on
// every turn, so the same items may be asserted repeatedly within one
// interview.
func Fold(m ManualVitals) []evidence.Item {
	var items []evidence.Item
	if m.Temperature != nil && *m.Temperature >= FeverTemperature {
		items = append(items, evidence.New(FeverSymptomID, evidence.Present))
	}
	if bp := m.BloodPressure; bp != nil && (bp.Systolic >= HypertensionSystolic || bp.Diastolic >= HypertensionDiastolic) {
		items = append(items, evidence.New(HypertensionSymptomID, evidence.Present))
	}
	return items
}

// HealthDataRequest is the body of a manual vitals submission. Values may be
// sent as numbers or numeric strings; blood pressure is only recorded when
// both halves are given.
type HealthDataRequest struct {
	UserID                 string  `json:"user_id"`
	Temperature            Numeric `json:"temperature"`
	BloodPressureSystolic  Numeric `json:"blood_pressure_systolic"`
	BloodPressureDiastolic Numeric `json:"blood_pressure_diastolic"`
}

// Vitals converts the request into the readings it carries.
func (r HealthDataRequest) Vitals() (ManualVitals, error) {
	var m ManualVitals
	if r.Temperature != "" {
		t, err := strconv.ParseFloat(string(r.Temperature), 64)
		if err != nil {
			return ManualVitals{}, fmt.Errorf("invalid temperature %q", r.Temperature)
		}
		m.Temperature = &t
	}
	if r.BloodPressureSystolic != "" && r.BloodPressureDiastolic != "" {
		sys, err := strconv.Atoi(string(r.BloodPressureSystolic))
		if err != nil {
			return ManualVitals{}, fmt.Errorf("invalid systolic pressure %q", r.BloodPressureSystolic)
		}
		dia, err := strconv.Atoi(string(r.BloodPressureDiastolic))
		if err != nil {
			return ManualVitals{}, fmt.Errorf("invalid diastolic pressure %q", r.BloodPressureDiastolic)
		}
		m.BloodPressure = &BloodPressure{Systolic: sys, Diastolic: dia}
	}
	return m, nil
}

// Numeric holds a JSON number or numeric string as text.
type Numeric string

func (n *Numeric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		*n = Numeric(s)
		return nil
	}
	*n = Numeric(data)
	return nil
}
