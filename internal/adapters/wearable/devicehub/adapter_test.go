package devicehub

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/healthsync/symptom-triage/internal/adapters/wearable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "devicehub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE VitalReadings (
		UserID      TEXT NOT NULL,
		ReadingType TEXT NOT NULL,
		Value       REAL,
		RecordedAt  TEXT NOT NULL
	)`)
	require.NoError(t, err)
	return db
}

func insert(t *testing.T, db *sql.DB, user, kind string, value any, at string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO VitalReadings (UserID, ReadingType, Value, RecordedAt) VALUES (?, ?, ?, ?)`,
		user, kind, value, at)
	require.NoError(t, err)
}

func TestGetBasicVitalsLatestReading(t *testing.T) {
	db := openTestDB(t)
	insert(t, db, "u1", "spo2", 94.0, "2024-03-09T08:00:00Z")
	insert(t, db, "u1", "spo2", 97.0, "2024-03-10T08:00:00Z")
	insert(t, db, "u1", "heart_rate", 72.0, "2024-03-10T07:00:00Z")
	insert(t, db, "u1", "temperature", 37.2, "2024-03-10T09:00:00Z")
	insert(t, db, "u2", "spo2", 88.0, "2024-03-11T08:00:00Z")

	a := NewWithDB(db, "VitalReadings", zap.NewNop())
	v, err := a.GetBasicVitals(context.Background(), wearable.Credentials{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, wearable.Vitals{SpO2: wearable.Value(97), HeartRate: wearable.Value(72)}, v)
}

func TestGetBasicVitalsPartial(t *testing.T) {
	db := openTestDB(t)
	insert(t, db, "u1", "heart_rate", nil, "2024-03-10T07:00:00Z")
	insert(t, db, "u1", "spo2", 95.5, "2024-03-10T07:00:00Z")

	a := NewWithDB(db, "VitalReadings", zap.NewNop())
	v, err := a.GetBasicVitals(context.Background(), wearable.Credentials{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, wearable.Value(95.5), v.SpO2)
	assert.False(t, v.HeartRate.Valid)
}

func TestGetBasicVitalsUnknownUser(t *testing.T) {
	a := NewWithDB(openTestDB(t), "VitalReadings", zap.NewNop())
	v, err := a.GetBasicVitals(context.Background(), wearable.Credentials{UserID: "nobody"})
	require.NoError(t, err)
	assert.False(t, v.Any())
}

func TestStoppedAdapter(t *testing.T) {
	db := openTestDB(t)
	a := NewWithDB(db, "VitalReadings", zap.NewNop())
	require.NoError(t, a.Health(context.Background()))
	require.NoError(t, a.Stop(context.Background()))

	_, err := a.GetBasicVitals(context.Background(), wearable.Credentials{UserID: "u1"})
	assert.Error(t, err)
	assert.Error(t, a.Health(context.Background()))
	// NewWithDB never closes a database it did not open.
	assert.NoError(t, db.Ping())
}
