// Package devicehub reads the latest vitals a bedside device gateway has
// written to its SQL Server database.
package devicehub

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/healthsync/symptom-triage/internal/adapters/wearable"
	"github.com/healthsync/symptom-triage/internal/shared/config"
	"github.com/healthsync/symptom-triage/internal/shared/metrics"
	"go.uber.org/zap"
)

const (
	readingSpO2      = "spo2"
	readingHeartRate = "heart_rate"
)

// Adapter implements wearable.Provider over a DeviceHub readings table.
type Adapter struct {
	cfg    config.WearableConfig
	logger *zap.Logger

	mu      sync.RWMutex
	db      *sql.DB
	ownsDB  bool
	running bool
}

// New creates an adapter; Start opens the connection.
func New(cfg config.WearableConfig, logger *zap.Logger) *Adapter {
	return &Adapter{cfg: cfg, logger: logger}
}

// NewWithDB wraps an already open database. The caller keeps ownership of db.
func NewWithDB(db *sql.DB, table string, logger *zap.Logger) *Adapter {
	return &Adapter{
		cfg:     config.WearableConfig{DeviceHubTable: table},
		logger:  logger,
		db:      db,
		running: true,
	}
}

func (a *Adapter) Name() string { return "devicehub" }

// Start opens and verifies the SQL Server connection.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("adapter already running")
	}

	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		a.cfg.DeviceHubHost,
		a.cfg.DeviceHubPort,
		a.cfg.DeviceHubDatabase,
		a.cfg.DeviceHubUser,
		a.cfg.DeviceHubPassword,
	)

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = db
	a.ownsDB = true
	a.running = true
	a.logger.Info("devicehub connected",
		zap.String("host", a.cfg.DeviceHubHost),
		zap.String("database", a.cfg.DeviceHubDatabase))
	return nil
}

// Stop closes the connection if the adapter opened it.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}
	a.running = false
	if a.ownsDB && a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Health checks database connectivity.
func (a *Adapter) Health(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.running {
		return fmt.Errorf("adapter not running")
	}
	return a.db.PingContext(ctx)
}

// GetBasicVitals returns the most recent SpO2 and heart-rate readings for
// the user. Missing reading types are left unavailable.
func (a *Adapter) GetBasicVitals(ctx context.Context, creds wearable.Credentials) (wearable.Vitals, error) {
	a.mu.RLock()
	db, running := a.db, a.running
	a.mu.RUnlock()
	if !running {
		return wearable.Unavailable(), fmt.Errorf("adapter not connected")
	}

	query := fmt.Sprintf(`
		SELECT r.ReadingType, r.Value
		FROM %[1]s r
		WHERE r.UserID = @user
		  AND r.ReadingType IN ('%[2]s', '%[3]s')
		  AND r.RecordedAt = (
			SELECT MAX(l.RecordedAt) FROM %[1]s l
			WHERE l.UserID = r.UserID AND l.ReadingType = r.ReadingType
		  )
	`, a.cfg.DeviceHubTable, readingSpO2, readingHeartRate)

	start := time.Now()
	rows, err := db.QueryContext(ctx, query, sql.Named("user", creds.UserID))
	metrics.RecordDBQuery("devicehub_vitals", time.Since(start))
	if err != nil {
		metrics.RecordWearableFetch(a.Name(), false)
		return wearable.Unavailable(), fmt.Errorf("failed to query vitals: %w", err)
	}
	defer rows.Close()

	var vitals wearable.Vitals
	for rows.Next() {
		var kind string
		var value sql.NullFloat64
		if err := rows.Scan(&kind, &value); err != nil {
			metrics.RecordWearableFetch(a.Name(), false)
			return wearable.Unavailable(), fmt.Errorf("failed to scan reading: %w", err)
		}
		if !value.Valid {
			continue
		}
		switch kind {
		case readingSpO2:
			vitals.SpO2 = wearable.Value(value.Float64)
		case readingHeartRate:
			vitals.HeartRate = wearable.Value(value.Float64)
		}
	}
	if err := rows.Err(); err != nil {
		metrics.RecordWearableFetch(a.Name(), false)
		return wearable.Unavailable(), err
	}

	metrics.RecordWearableFetch(a.Name(), vitals.Any())
	return vitals, nil
}
