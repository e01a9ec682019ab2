package conversation

import (
	"context"
	"sync"
	"time"
)

// Store persists sessions between turns. Save replaces the whole session
// atomically.
type Store interface {
	Get(ctx context.Context, userID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	// CountActive counts sessions with activity after since.
	CountActive(ctx context.Context, since time.Time) (int, error)
	Close() error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Get(_ context.Context, userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[userID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.UserID] = s.Clone()
	return nil
}

func (m *MemoryStore) CountActive(_ context.Context, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, s := range m.sessions {
		if s.LastActivity.After(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }
