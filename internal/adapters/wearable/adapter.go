package wearable

import (
	"context"
	"encoding/json"
	"strconv"
)

// NotAvailable is how a missing reading is rendered.
const NotAvailable = "N/A"

// Provider fetches current vitals for a user from a wearable source.
// Implementations own their retry and caching policy; fields they cannot
// fill are left unavailable rather than reported as errors.
type Provider interface {
	// Name identifies the source in logs and metrics.
	Name() string
	GetBasicVitals(ctx context.Context, creds Credentials) (Vitals, error)
}

// Credentials identify the user to the provider. Token fields are empty for
// sources that do not use OAuth.
type Credentials struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

// Reading is a single numeric measurement that may be unavailable.
type Reading struct {
	Value float64
	Valid bool
}

// Value builds an available reading.
func Value(v float64) Reading {
	return Reading{Value: v, Valid: true}
}

// String renders the reading for prompts and logs.
func (r Reading) String() string {
	if !r.Valid {
		return NotAvailable
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64)
}

// MarshalJSON renders the value as a number or "N/A".
func (r Reading) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return json.Marshal(NotAvailable)
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON accepts a number or any string as unavailable.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*r = Value(v)
		return nil
	}
	*r = Reading{}
	return nil
}

// Vitals is the basic vitals record.
type Vitals struct {
	SpO2      Reading `json:"sp02"`
	HeartRate Reading `json:"heart_rate"`
}

// Unavailable is the record used when nothing can be fetched.
func Unavailable() Vitals {
	return Vitals{}
}

// Any reports whether at least one reading is available.
func (v Vitals) Any() bool {
	return v.SpO2.Valid || v.HeartRate.Valid
}

// NopProvider is used when no wearable source is configured.
type NopProvider struct{}

func (NopProvider) Name() string { return "none" }

func (NopProvider) GetBasicVitals(context.Context, Credentials) (Vitals, error) {
	return Unavailable(), nil
}
