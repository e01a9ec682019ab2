package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/healthsync/symptom-triage/internal/biometrics"
	"github.com/healthsync/symptom-triage/internal/events"
	"github.com/healthsync/symptom-triage/internal/shared/auth"
	"github.com/healthsync/symptom-triage/internal/shared/errors"
	"go.uber.org/zap"
)

// Reply messages for the session endpoints.
const (
	MsgReset            = "Session reset successfully. Start a new diagnosis by entering your symptoms."
	MsgHealthDataSaved  = "Health data submitted successfully."
	MsgProfileUpdated   = "Profile updated successfully."
	MsgFeedbackThanks   = "Thank you for your feedback!"
	MsgFeedbackRequired = "User ID and feedback are required"
	MsgUserIDRequired   = "user_id is required"
	MsgInvalidRequest   = "Invalid request: No JSON data provided."
)

// SymptomNames lists the names the translator can resolve locally.
type SymptomNames interface {
	Names() []string
}

// Handler provides HTTP handlers for the chat and session endpoints
type Handler struct {
	engine    *Engine
	manager   *Manager
	symptoms  SymptomNames
	publisher events.Publisher
	minAge    int
	logger    *zap.Logger
}

// NewHandler creates a new conversation handler. symptoms may be nil when
// no catalog is loaded.
func NewHandler(engine *Engine, manager *Manager, symptoms SymptomNames, logger *zap.Logger) *Handler {
	return &Handler{
		engine:    engine,
		manager:   manager,
		symptoms:  symptoms,
		publisher: engine.deps.Publisher,
		minAge:    engine.minAge,
		logger:    logger,
	}
}

// Routes registers the conversation routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/chat", h.Chat)
	r.Post("/reset", h.Reset)
	r.Post("/health-data", h.SubmitHealthData)
	r.Post("/profile", h.UpdateProfile)
	r.Get("/symptoms", h.ListSymptoms)
	r.Post("/feedback", h.Feedback)

	return r
}

// Chat runs one interview turn.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, TurnResponse{Message: MsgInvalidRequest})
		return
	}
	if req.UserID = resolveUserID(r.Context(), req.UserID); req.UserID == "" {
		writeError(w, errors.BadRequest(MsgUserIDRequired))
		return
	}

	resp, err := h.engine.Turn(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type userRequest struct {
	UserID string `json:"user_id"`
}

// Reset discards the user's current interview.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, errors.BadRequest("invalid request body: "+err.Error()))
		return
	}
	userID := resolveUserID(r.Context(), req.UserID)
	if userID == "" {
		writeError(w, errors.BadRequest(MsgUserIDRequired))
		return
	}

	prev, err := h.manager.Reset(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to reset session", zap.String("user_id", userID), zap.Error(err))
		writeError(w, errors.Wrap(err, "Error resetting session."))
		return
	}
	if len(prev.Evidence) > 0 {
		h.publisher.Publish(r.Context(), events.New(events.InterviewReset, prev.InterviewID.String(), userID, map[string]any{
			"reason":         "user_request",
			"question_count": prev.QuestionCount,
		}))
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": MsgReset, "user_input": nil})
}

// SubmitHealthData records manually entered vitals.
func (h *Handler) SubmitHealthData(w http.ResponseWriter, r *http.Request) {
	var req biometrics.HealthDataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body: "+err.Error()))
		return
	}
	userID := resolveUserID(r.Context(), req.UserID)
	if userID == "" {
		writeError(w, errors.BadRequest(MsgUserIDRequired))
		return
	}

	vitals, err := req.Vitals()
	if err != nil {
		writeError(w, errors.Validation(err.Error(), nil))
		return
	}

	err = h.manager.Update(r.Context(), userID, func(s *Session) error {
		s.ManualVitals = s.ManualVitals.Merge(vitals)
		return nil
	})
	if err != nil {
		writeError(w, errors.Wrap(err, "failed to save health data"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": MsgHealthDataSaved})
}

type profileRequest struct {
	UserID string `json:"user_id"`
	Age    *int   `json:"age"`
	Sex    string `json:"sex"`
}

// UpdateProfile sets the demographics sent to the oracle.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body: "+err.Error()))
		return
	}
	userID := resolveUserID(r.Context(), req.UserID)
	if userID == "" {
		writeError(w, errors.BadRequest(MsgUserIDRequired))
		return
	}

	details := map[string]string{}
	if req.Age != nil && *req.Age < h.minAge {
		details["age"] = fmt.Sprintf(MsgUnderageDetailFmt, h.minAge)
	}
	sex := NormalizeSex(req.Sex)
	if req.Sex != "" && sex == "" {
		details["sex"] = "sex must be male or female"
	}
	if len(details) > 0 {
		writeError(w, errors.Validation("invalid profile", details))
		return
	}

	err := h.manager.Update(r.Context(), userID, func(s *Session) error {
		if req.Age != nil {
			s.Age = *req.Age
		}
		if sex != "" {
			s.Sex = sex
		}
		return nil
	})
	if err != nil {
		writeError(w, errors.Wrap(err, "failed to update profile"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": MsgProfileUpdated})
}

// ListSymptoms returns the symptom names of the local catalog.
func (h *Handler) ListSymptoms(w http.ResponseWriter, r *http.Request) {
	if h.symptoms == nil {
		writeJSON(w, http.StatusNotFound, map[string][]string{"symptoms": {}})
		return
	}
	names := h.symptoms.Names()
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"symptoms": names})
}

type feedbackRequest struct {
	UserID   string `json:"user_id"`
	Feedback string `json:"feedback"`
}

// Feedback logs a user's feedback on an assessment.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body: "+err.Error()))
		return
	}
	userID := resolveUserID(r.Context(), req.UserID)
	if userID == "" || req.Feedback == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": MsgFeedbackRequired})
		return
	}

	h.logger.Info("user feedback",
		zap.String("user_id", userID),
		zap.String("feedback", req.Feedback),
		zap.Time("received_at", time.Now().UTC()))
	writeJSON(w, http.StatusOK, map[string]string{"message": MsgFeedbackThanks})
}

// resolveUserID prefers the authenticated subject over the body field.
func resolveUserID(ctx context.Context, fromBody string) string {
	if u := auth.GetUser(ctx); u != nil {
		return u.ID
	}
	return fromBody
}

// decodeOptional decodes a JSON body, accepting an empty one.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		writeJSON(w, appErr.HTTPStatus, map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
