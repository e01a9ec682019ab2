package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/healthsync/symptom-triage/internal/biometrics"
	"github.com/healthsync/symptom-triage/internal/conversation"
	"github.com/healthsync/symptom-triage/internal/shared/auth"
	"github.com/healthsync/symptom-triage/internal/shared/config"
	"github.com/healthsync/symptom-triage/internal/shared/metrics"
	secmiddleware "github.com/healthsync/symptom-triage/internal/shared/middleware"
	"go.uber.org/zap"
)

// HealthChecker is a dependency that can report readiness.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// App holds the wired components served by the HTTP router.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Conversation *conversation.Handler
	Biometrics   *biometrics.Handler
	Limiter      *secmiddleware.IPRateLimiter

	// Checks maps a dependency name to its health probe. A nil probe is
	// reported as "not configured".
	Checks map[string]HealthChecker
}

func newRouter(app *App) http.Handler {
	cfg := app.Config

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(secmiddleware.RequestLogger(app.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(metrics.Middleware)

	cors := secmiddleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.Server.AllowedOrigins
	r.Use(secmiddleware.CORS(cors))

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/", infoHandler)

	limiter := app.Limiter
	if limiter == nil {
		limiter = secmiddleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(secmiddleware.InputSanitizer)
		r.Use(limiter.Middleware)
		r.Use(auth.Middleware(cfg.Auth))

		r.Mount("/", app.Conversation.Routes())
		r.Get("/vitals", app.Biometrics.GetVitals)
		r.Get("/dashboard", app.Biometrics.GetDashboard)
	})

	return r
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Symptom Triage",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		for name, checker := range app.Checks {
			switch {
			case checker == nil:
				checks[name] = "not configured"
			default:
				if err := checker.Health(r.Context()); err != nil {
					checks[name] = "not ready: " + err.Error()
				} else {
					checks[name] = "ready"
				}
			}
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
