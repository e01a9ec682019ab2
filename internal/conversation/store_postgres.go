package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/healthsync/symptom-triage/internal/shared/database"
	"github.com/healthsync/symptom-triage/internal/shared/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps sessions in the interview_sessions table. The whole
// session is stored as JSONB; the scalar columns are copies for querying.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store over a migrated database.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Get(ctx context.Context, userID string) (*Session, error) {
	defer observe("session_get", time.Now())

	var state []byte
	err := p.pool.QueryRow(ctx,
		`SELECT state FROM interview_sessions WHERE user_id = $1`, userID,
	).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(state, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}

func (p *PostgresStore) Save(ctx context.Context, s *Session) error {
	defer observe("session_save", time.Now())

	state, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	return database.WithTx(ctx, p.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO interview_sessions (user_id, interview_id, state, question_count, last_activity, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
			ON CONFLICT (user_id) DO UPDATE SET
				interview_id   = EXCLUDED.interview_id,
				state          = EXCLUDED.state,
				question_count = EXCLUDED.question_count,
				last_activity  = EXCLUDED.last_activity,
				updated_at     = NOW()`,
			s.UserID, s.InterviewID.String(), state, s.QuestionCount, s.LastActivity,
		)
		if err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
		return nil
	})
}

func (p *PostgresStore) CountActive(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM interview_sessions WHERE last_activity > $1`, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// Close is a no-op; the pool is owned by the caller.
func (p *PostgresStore) Close() error { return nil }

func observe(operation string, start time.Time) {
	metrics.RecordDBQuery(operation, time.Since(start))
}
