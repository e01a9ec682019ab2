package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/healthsync/symptom-triage/internal/evidence"
	"github.com/healthsync/symptom-triage/internal/oracle"
	"github.com/healthsync/symptom-triage/internal/shared/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticNames []string

func (s staticNames) Names() []string { return s }

func newTestHandler(t *testing.T, h *harness, names SymptomNames) http.Handler {
	t.Helper()
	return NewHandler(h.engine, h.manager, names, zap.NewNop()).Routes()
}

func do(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestChatEndpoint(t *testing.T) {
	h := newHarness(t, fakeTranslator{"headache": {headache}}, true)
	h.oracle.replies = []*oracle.DiagnosisResponse{{Question: question("single", "Nausea?", nausea)}}
	handler := newTestHandler(t, h, nil)

	rec := do(t, handler, http.MethodPost, "/chat", map[string]any{"user_id": "u1", "input": "headache", "age": 40})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "headache", body["user_input"])
	assert.Equal(t, map[string]any{"sp02": "N/A", "heart_rate": "N/A"}, body["smartwatch_data"])
	followUp, ok := body["follow_up"].(map[string]any)
	require.True(t, ok, "follow_up should be a question object")
	assert.Equal(t, "dropdown", followUp["ui_hint"])
	assert.Equal(t, true, followUp["is_binary"])

	rec = do(t, handler, http.MethodPost, "/chat", map[string]any{"user_id": "u1", "answer": []string{"Yes"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.session(t, "u1").QuestionCount)
	assert.Equal(t, 40, h.session(t, "u1").Age)
}

func TestChatEndpointRejectsBadRequests(t *testing.T) {
	handler := newTestHandler(t, newHarness(t, fakeTranslator{}, false), nil)

	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, handler, http.MethodPost, "/chat", map[string]any{"input": "headache"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatUsesAuthenticatedUser(t *testing.T) {
	h := newHarness(t, fakeTranslator{"headache": {headache}}, false)
	h.oracle.replies = []*oracle.DiagnosisResponse{{Question: question("single", "Nausea?", nausea)}}
	handler := newTestHandler(t, h, nil)

	body, _ := json.Marshal(map[string]any{"user_id": "spoofed", "input": "headache"})
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body))
	req = req.WithContext(auth.WithUser(req.Context(), &auth.User{ID: "real"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []evidence.Item{headache}, h.session(t, "real").Evidence)
	_, err := h.store.Get(context.Background(), "spoofed")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestResetEndpoint(t *testing.T) {
	h := newHarness(t, fakeTranslator{"headache": {headache}}, false)
	startInterview(t, h, "u1")
	first := h.session(t, "u1").InterviewID
	handler := newTestHandler(t, h, nil)

	rec := do(t, handler, http.MethodPost, "/reset", map[string]any{"user_id": "u1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message": "`+MsgReset+`", "user_input": null}`, rec.Body.String())

	s := h.session(t, "u1")
	assert.NotEqual(t, first, s.InterviewID)
	assert.Empty(t, s.Evidence)
	assert.Contains(t, h.publisher.types(), "interview.reset")
}

func TestHealthDataEndpoint(t *testing.T) {
	h := newHarness(t, fakeTranslator{}, false)
	handler := newTestHandler(t, h, nil)

	rec := do(t, handler, http.MethodPost, "/health-data", map[string]any{
		"user_id":                  "u1",
		"temperature":              "38.6",
		"blood_pressure_systolic":  "120",
		"blood_pressure_diastolic": "95",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), MsgHealthDataSaved)

	rec = do(t, handler, http.MethodPost, "/health-data", map[string]any{"user_id": "u1", "temperature": 37.1})
	require.Equal(t, http.StatusOK, rec.Code)

	vitals, err := h.manager.ManualVitals(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, vitals.Temperature)
	assert.Equal(t, 37.1, *vitals.Temperature)
	require.NotNil(t, vitals.BloodPressure)
	assert.Equal(t, 95, vitals.BloodPressure.Diastolic)

	rec = do(t, handler, http.MethodPost, "/health-data", map[string]any{"user_id": "u1", "temperature": "warm"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfileEndpoint(t *testing.T) {
	h := newHarness(t, fakeTranslator{}, false)
	handler := newTestHandler(t, h, nil)

	rec := do(t, handler, http.MethodPost, "/profile", map[string]any{"user_id": "u1", "age": 61, "sex": "female"})
	require.Equal(t, http.StatusOK, rec.Code)
	s := h.session(t, "u1")
	assert.Equal(t, 61, s.Age)
	assert.Equal(t, "female", s.Sex)

	rec = do(t, handler, http.MethodPost, "/profile", map[string]any{"user_id": "u1", "age": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "aged 18 and above")
	assert.Equal(t, 61, h.session(t, "u1").Age)
}

func TestSymptomsEndpoint(t *testing.T) {
	h := newHarness(t, fakeTranslator{}, false)

	rec := do(t, newTestHandler(t, h, staticNames{"cough", "fever"}), http.MethodGet, "/symptoms", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"symptoms": ["cough", "fever"]}`, rec.Body.String())

	rec = do(t, newTestHandler(t, h, nil), http.MethodGet, "/symptoms", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"symptoms": []}`, rec.Body.String())
}

func TestFeedbackEndpoint(t *testing.T) {
	handler := newTestHandler(t, newHarness(t, fakeTranslator{}, false), nil)

	rec := do(t, handler, http.MethodPost, "/feedback", map[string]any{"user_id": "u1", "feedback": "helpful"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message": "Thank you for your feedback!"}`, rec.Body.String())

	rec = do(t, handler, http.MethodPost, "/feedback", map[string]any{"user_id": "u1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
