package conversation

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/healthsync/symptom-triage/internal/biometrics"
	"github.com/healthsync/symptom-triage/internal/evidence"
	"github.com/healthsync/symptom-triage/internal/shared/database"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// exerciseStore checks the behavior every Store implementation shares.
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)

	temp := 38.4
	s := NewSession("store-user")
	s.Evidence = []evidence.Item{evidence.New("s_98", evidence.Present), evidence.New("s_98", evidence.Present)}
	s.PendingQuestion = &evidence.PendingQuestion{
		Items:    []evidence.QuestionItem{{SymptomID: "s_1", DisplayName: "Cough"}},
		Type:     evidence.QuestionSingle,
		Text:     "Do you cough?",
		IsBinary: true,
	}
	s.QuestionCount = 2
	s.ManualVitals = biometrics.ManualVitals{
		Temperature:   &temp,
		BloodPressure: &biometrics.BloodPressure{Systolic: 150, Diastolic: 85},
	}
	s.LastActivity = time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, "store-user")
	require.NoError(t, err)
	assert.Equal(t, s.InterviewID, got.InterviewID)
	assert.Equal(t, s.Evidence, got.Evidence)
	assert.Equal(t, s.PendingQuestion, got.PendingQuestion)
	assert.Equal(t, 2, got.QuestionCount)
	assert.Equal(t, s.ManualVitals, got.ManualVitals)
	assert.True(t, s.LastActivity.Equal(got.LastActivity))

	// Saving again replaces the session.
	got.Reset()
	require.NoError(t, store.Save(ctx, got))
	again, err := store.Get(ctx, "store-user")
	require.NoError(t, err)
	assert.Empty(t, again.Evidence)
	assert.Nil(t, again.PendingQuestion)
	assert.NotEqual(t, s.InterviewID, again.InterviewID)

	idle := NewSession("idle-user")
	idle.LastActivity = time.Now().Add(-2 * time.Hour)
	require.NoError(t, store.Save(ctx, idle))

	n, err := store.CountActive(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	store := NewMemoryStore()
	s := NewSession("u1")
	s.Evidence = []evidence.Item{evidence.New("s_1", evidence.Present)}
	require.NoError(t, store.Save(context.Background(), s))

	s.Evidence[0] = evidence.New("s_2", evidence.Absent)
	got, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "s_1", got.Evidence[0].SymptomID)
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	exerciseStore(t, store)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool, zap.NewNop()))
	_, err = pool.Exec(ctx, `DELETE FROM interview_sessions WHERE user_id IN ('store-user', 'idle-user')`)
	require.NoError(t, err)

	exerciseStore(t, NewPostgresStore(pool))
}
