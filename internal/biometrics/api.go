package biometrics

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/healthsync/symptom-triage/internal/adapters/wearable"
	"github.com/healthsync/symptom-triage/internal/shared/auth"
	"github.com/healthsync/symptom-triage/internal/shared/errors"
	"go.uber.org/zap"
)

// ManualVitalsReader looks up the readings a user entered by hand.
type ManualVitalsReader interface {
	ManualVitals(ctx context.Context, userID string) (ManualVitals, error)
}

// VitalsResponse is returned by GET /vitals.
type VitalsResponse struct {
	SmartwatchData wearable.Vitals `json:"smartwatch_data"`
	Insights       string          `json:"insights,omitempty"`
}

// DashboardResponse is returned by GET /dashboard.
type DashboardResponse struct {
	SmartwatchData wearable.Vitals `json:"smartwatch_data"`
	ManualData     ManualVitals    `json:"manual_health_data"`
}

// Handler provides HTTP handlers for the vitals views
type Handler struct {
	service *Service
	manual  ManualVitalsReader
	logger  *zap.Logger
}

// NewHandler creates a new vitals handler
func NewHandler(service *Service, manual ManualVitalsReader, logger *zap.Logger) *Handler {
	return &Handler{service: service, manual: manual, logger: logger}
}

// Routes registers the vitals routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/vitals", h.GetVitals)
	r.Get("/dashboard", h.GetDashboard)

	return r
}

// GetVitals returns wearable readings plus generated insights when at
// least one reading is available.
func (h *Handler) GetVitals(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writeError(w, errors.BadRequest("user_id is required"))
		return
	}

	v := h.service.BasicVitals(r.Context(), userID)
	writeJSON(w, http.StatusOK, VitalsResponse{
		SmartwatchData: v,
		Insights:       h.service.Insights(r.Context(), v),
	})
}

// GetDashboard returns manual and wearable readings side by side.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		writeError(w, errors.BadRequest("user_id is required"))
		return
	}

	manual, err := h.manual.ManualVitals(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load manual vitals", zap.String("user_id", userID), zap.Error(err))
		writeError(w, errors.Wrap(err, "failed to load health data"))
		return
	}

	writeJSON(w, http.StatusOK, DashboardResponse{
		SmartwatchData: h.service.BasicVitals(r.Context(), userID),
		ManualData:     manual,
	})
}

// requestUserID prefers the authenticated subject over the query string.
func requestUserID(r *http.Request) string {
	if u := auth.GetUser(r.Context()); u != nil {
		return u.ID
	}
	return r.URL.Query().Get("user_id")
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
