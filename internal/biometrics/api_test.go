package biometrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/healthsync/symptom-triage/internal/adapters/wearable"
	"github.com/healthsync/symptom-triage/internal/shared/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	vitals wearable.Vitals
	err    error
	creds  wearable.Credentials
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) GetBasicVitals(_ context.Context, creds wearable.Credentials) (wearable.Vitals, error) {
	p.creds = creds
	return p.vitals, p.err
}

type stubInsights struct {
	calls int
	reply string
	err   error
}

func (s *stubInsights) VitalsInsights(_ context.Context, spo2, hr string) (string, error) {
	s.calls++
	return s.reply + " " + spo2 + "/" + hr, s.err
}

type stubManual map[string]ManualVitals

func (m stubManual) ManualVitals(_ context.Context, userID string) (ManualVitals, error) {
	return m[userID], nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGetVitalsWithInsights(t *testing.T) {
	p := &stubProvider{vitals: wearable.Vitals{SpO2: wearable.Value(97), HeartRate: wearable.Reading{}}}
	ins := &stubInsights{reply: "looks fine"}
	h := NewHandler(NewService(p, ins, zap.NewNop()), stubManual{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/vitals", nil)
	req = req.WithContext(auth.WithUser(req.Context(), &auth.User{ID: "u1", WearableAccessToken: "tok"}))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, map[string]any{"sp02": 97.0, "heart_rate": "N/A"}, body["smartwatch_data"])
	assert.Equal(t, "looks fine 97/N/A", body["insights"])
	assert.Equal(t, wearable.Credentials{UserID: "u1", AccessToken: "tok"}, p.creds)
}

func TestGetVitalsNothingAvailableSkipsInsights(t *testing.T) {
	ins := &stubInsights{reply: "x"}
	h := NewHandler(NewService(&stubProvider{err: errors.New("down")}, ins, zap.NewNop()), stubManual{}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vitals?user_id=u1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, map[string]any{"sp02": "N/A", "heart_rate": "N/A"}, body["smartwatch_data"])
	assert.NotContains(t, body, "insights")
	assert.Zero(t, ins.calls)
}

func TestGetVitalsRequiresUser(t *testing.T) {
	h := NewHandler(NewService(nil, nil, zap.NewNop()), stubManual{}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vitals", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDashboard(t *testing.T) {
	manual := stubManual{"u1": {Temperature: float(38.2)}}
	p := &stubProvider{vitals: wearable.Vitals{HeartRate: wearable.Value(64)}}
	h := NewHandler(NewService(p, nil, zap.NewNop()), manual, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req = req.WithContext(auth.WithUser(req.Context(), &auth.User{ID: "u1"}))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, map[string]any{"temperature": 38.2}, body["manual_health_data"])
	assert.Equal(t, map[string]any{"sp02": "N/A", "heart_rate": 64.0}, body["smartwatch_data"])
}

func TestGetDashboardAnonymousHidesReadings(t *testing.T) {
	manual := stubManual{"u1": {Temperature: float(38.2)}}
	p := &stubProvider{vitals: wearable.Vitals{HeartRate: wearable.Value(64)}}
	h := NewHandler(NewService(p, nil, zap.NewNop()), manual, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard?user_id=u1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, map[string]any{"sp02": "N/A", "heart_rate": "N/A"}, body["smartwatch_data"])
	assert.Empty(t, p.creds.UserID)
}
