package biometrics

import (
	"context"

	"github.com/healthsync/symptom-triage/internal/adapters/wearable"
	"github.com/healthsync/symptom-triage/internal/shared/auth"
	"go.uber.org/zap"
)

// InsightGenerator writes a short commentary on a vitals reading.
type InsightGenerator interface {
	VitalsInsights(ctx context.Context, spo2, heartRate string) (string, error)
}

// Service reads wearable vitals for presentation. Wearable readings never
// become interview evidence.
type Service struct {
	provider wearable.Provider
	insights InsightGenerator
	logger   *zap.Logger
}

// NewService creates the vitals service. A nil provider behaves like
// wearable.NopProvider; a nil insights generator disables insights.
func NewService(provider wearable.Provider, insights InsightGenerator, logger *zap.Logger) *Service {
	if provider == nil {
		provider = wearable.NopProvider{}
	}
	return &Service{provider: provider, insights: insights, logger: logger}
}

// BasicVitals returns the authenticated caller's current readings. Readings
// are only fetched for the user carried in ctx; userID must name that user.
// Anonymous callers, mismatched ids and provider failures get the
// all-unavailable record.
func (s *Service) BasicVitals(ctx context.Context, userID string) wearable.Vitals {
	u := auth.GetUser(ctx)
	if u == nil || u.ID == "" {
		return wearable.Unavailable()
	}
	if userID != "" && userID != u.ID {
		s.logger.Warn("vitals requested for another user",
			zap.String("user_id", u.ID),
			zap.String("requested", userID))
		return wearable.Unavailable()
	}
	userID = u.ID

	creds := wearable.Credentials{UserID: userID}
	if u.WearableLinked() {
		creds.AccessToken = u.WearableAccessToken
		creds.RefreshToken = u.WearableRefreshToken
	}

	v, err := s.provider.GetBasicVitals(ctx, creds)
	if err != nil {
		s.logger.Warn("wearable vitals unavailable",
			zap.String("provider", s.provider.Name()),
			zap.String("user_id", userID),
			zap.Error(err))
		if !v.Any() {
			return wearable.Unavailable()
		}
	}
	return v
}

// Insights comments on v. It returns "" when no reading is available or
// the generator fails.
func (s *Service) Insights(ctx context.Context, v wearable.Vitals) string {
	if s.insights == nil || !v.Any() {
		return ""
	}
	text, err := s.insights.VitalsInsights(ctx, v.SpO2.String(), v.HeartRate.String())
	if err != nil {
		s.logger.Warn("vitals insights failed", zap.Error(err))
		return ""
	}
	return text
}
