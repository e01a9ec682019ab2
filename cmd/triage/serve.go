package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/healthsync/symptom-triage/internal/adapters/wearable"
	"github.com/healthsync/symptom-triage/internal/adapters/wearable/devicehub"
	"github.com/healthsync/symptom-triage/internal/adapters/wearable/fitbit"
	"github.com/healthsync/symptom-triage/internal/biometrics"
	"github.com/healthsync/symptom-triage/internal/conversation"
	"github.com/healthsync/symptom-triage/internal/diagnosis"
	"github.com/healthsync/symptom-triage/internal/events"
	"github.com/healthsync/symptom-triage/internal/interpreter"
	"github.com/healthsync/symptom-triage/internal/llm"
	"github.com/healthsync/symptom-triage/internal/oracle"
	"github.com/healthsync/symptom-triage/internal/shared/database"
	secmiddleware "github.com/healthsync/symptom-triage/internal/shared/middleware"
	"github.com/healthsync/symptom-triage/internal/translator"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	// eventTimeout bounds a best-effort publish after the turn has answered.
	eventTimeout = 5 * time.Second
	// activeWindow is how recent a session's last turn must be to count as active.
	activeWindow = 30 * time.Minute
	// limiterIdle is how long a client's rate bucket survives without requests.
	limiterIdle = 10 * time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat HTTP server",
	RunE:  runServe,
}

// closer collects shutdown steps in reverse start order.
type closer []func()

func (c *closer) add(fn func()) { *c = append(*c, fn) }

func (c closer) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	var cleanup closer
	defer cleanup.run()

	// Cancelled before cleanup runs so background loops stop first.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	app := &App{
		Config: cfg,
		Logger: logger,
		Checks: map[string]HealthChecker{},
	}

	store, err := openStore(ctx, app, &cleanup)
	if err != nil {
		return err
	}
	manager := conversation.NewManager(store, logger)

	publisher := openPublisher(ctx, app, &cleanup)

	provider := openWearable(ctx, app, &cleanup)

	llmClient, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create llm client: %w", err)
	}
	assistant := llm.NewAssistant(llmClient, cfg.LLM.Timeout, logger)

	oracleClient := oracle.NewClient(cfg.Oracle, logger)

	catalog, err := translator.LoadCatalog(cfg.Catalog.CacheFile, cfg.Catalog.CacheExpiry)
	if err != nil {
		logger.Warn("symptom catalog not loaded, run `triage symptoms sync`",
			zap.String("path", cfg.Catalog.CacheFile), zap.Error(err))
		catalog = translator.NewCatalog(nil)
	}
	var symptoms conversation.SymptomNames
	if catalog.Len() > 0 {
		symptoms = catalog
	}

	vitals := biometrics.NewService(provider, assistant, logger)

	engine := conversation.NewEngine(cfg.Interview, conversation.Dependencies{
		Translator:  translator.New(oracleClient, assistant, catalog, logger),
		Interpreter: interpreter.New(assistant, logger),
		Diagnoser:   diagnosis.NewGateway(oracleClient, assistant, cfg.Interview.ProbabilityDiffThreshold, logger),
		Assistant:   assistant,
		Vitals:      vitals,
		Publisher:   publisher,
	}, manager, logger)

	app.Conversation = conversation.NewHandler(engine, manager, symptoms, logger)
	app.Biometrics = biometrics.NewHandler(vitals, manager, logger)

	app.Limiter = secmiddleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	go manager.ReportActive(ctx, time.Minute, activeWindow)
	go app.Limiter.Run(ctx, time.Minute, limiterIdle)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      newRouter(app),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-quit:
		case <-ctx.Done():
		}
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
		close(done)
	}()

	logger.Info("symptom triage server starting",
		zap.String("env", cfg.Server.Env),
		zap.Int("port", cfg.Server.Port),
		zap.String("session_store", cfg.Store.Driver),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("wearable_provider", cfg.Wearable.Provider),
		zap.Bool("events", cfg.KurrentDB.Enabled),
		zap.Bool("auth", cfg.Auth.Enabled),
		zap.Int("catalog_entries", catalog.Len()),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("server stopped")
	return nil
}

// openStore selects the session store. A Postgres store whose database is
// unreachable falls back to memory so the service still answers.
func openStore(ctx context.Context, app *App, cleanup *closer) (conversation.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			logger.Warn("database not available, sessions kept in memory", zap.Error(err))
			app.Checks["database"] = nil
			return conversation.NewMemoryStore(), nil
		}
		cleanup.add(db.Close)
		app.Checks["database"] = db

		if err := database.Migrate(ctx, db.Pool, logger); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		return conversation.NewPostgresStore(db.Pool), nil

	case "sqlite":
		store, err := conversation.OpenSQLiteStore(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		cleanup.add(func() { store.Close() })
		return store, nil

	case "memory", "":
		return conversation.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store.Driver)
	}
}

// openPublisher connects the interview event stream when enabled. Publishing
// is always best effort.
func openPublisher(ctx context.Context, app *App, cleanup *closer) events.Publisher {
	if !cfg.KurrentDB.Enabled {
		app.Checks["kurrentdb"] = nil
		return events.NopPublisher{}
	}

	kp, err := events.NewKurrentPublisher(ctx, cfg.KurrentDB, logger)
	if err != nil {
		logger.Warn("KurrentDB not available, running without interview events", zap.Error(err))
		app.Checks["kurrentdb"] = nil
		return events.NopPublisher{}
	}
	app.Checks["kurrentdb"] = kp

	publisher := events.NewBestEffort(kp, eventTimeout, logger)
	cleanup.add(func() { publisher.Close() })
	return publisher
}

// openWearable builds the configured vitals provider. A nil provider
// reports every reading as unavailable.
func openWearable(ctx context.Context, app *App, cleanup *closer) wearable.Provider {
	switch cfg.Wearable.Provider {
	case "fitbit":
		return fitbit.New(cfg.Wearable, logger)

	case "devicehub":
		hub := devicehub.New(cfg.Wearable, logger)
		if err := hub.Start(ctx); err != nil {
			logger.Warn("device hub not available, vitals disabled", zap.Error(err))
			app.Checks["devicehub"] = nil
			return nil
		}
		cleanup.add(func() { hub.Stop(context.Background()) })
		app.Checks["devicehub"] = hub
		return hub

	default:
		return nil
	}
}
