package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS interview_sessions (
	user_id        TEXT PRIMARY KEY,
	interview_id   TEXT NOT NULL,
	state          TEXT NOT NULL,
	question_count INTEGER NOT NULL DEFAULT 0,
	last_activity  INTEGER NOT NULL,
	updated_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interview_sessions_last_activity
	ON interview_sessions (last_activity);
`

// SQLiteStore keeps sessions in an embedded SQLite file for single-node
// deployments. Timestamps are stored as unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection, so writers never contend for the file lock.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, userID string) (*Session, error) {
	defer observe("session_get", time.Now())

	var state string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM interview_sessions WHERE user_id = ?`, userID,
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(state), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

func (s *SQLiteStore) Save(ctx context.Context, sess *Session) error {
	defer observe("session_save", time.Now())

	state, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO interview_sessions (user_id, interview_id, state, question_count, last_activity, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			interview_id   = excluded.interview_id,
			state          = excluded.state,
			question_count = excluded.question_count,
			last_activity  = excluded.last_activity,
			updated_at     = excluded.updated_at`,
		sess.UserID, sess.InterviewID.String(), string(state), sess.QuestionCount,
		sess.LastActivity.UnixNano(), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) CountActive(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM interview_sessions WHERE last_activity > ?`, since.UnixNano(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
