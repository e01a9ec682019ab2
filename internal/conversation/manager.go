package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/healthsync/symptom-triage/internal/biometrics"
	"github.com/healthsync/symptom-triage/internal/shared/metrics"
	"go.uber.org/zap"
)

// Manager serializes access to sessions per user. Turns for the same user
// never interleave; different users proceed in parallel.
type Manager struct {
	store  Store
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*keyLock
}

// keyLock is a per-user mutex shared by every caller waiting on that user.
// It is dropped from the map when the last holder releases it.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a manager over store.
func NewManager(store Store, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger,
		locks:  make(map[string]*keyLock),
	}
}

func (m *Manager) lock(userID string) func() {
	m.mu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &keyLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, userID)
		}
		m.mu.Unlock()
	}
}

// load returns the stored session or a fresh default one.
func (m *Manager) load(ctx context.Context, userID string) (*Session, error) {
	s, err := m.store.Get(ctx, userID)
	if errors.Is(err, ErrSessionNotFound) {
		return NewSession(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Update runs fn on the user's session inside the user's critical section
// and saves the session afterwards, even when fn fails: mutations made
// before a failure are kept.
func (m *Manager) Update(ctx context.Context, userID string, fn func(*Session) error) error {
	unlock := m.lock(userID)
	defer unlock()

	s, err := m.load(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	fnErr := fn(s)

	// The turn may have been cancelled by the client; the session must
	// still be persisted.
	if err := m.store.Save(context.WithoutCancel(ctx), s); err != nil {
		return errors.Join(fnErr, fmt.Errorf("failed to save session: %w", err))
	}
	return fnErr
}

// Get returns a snapshot of the user's session.
func (m *Manager) Get(ctx context.Context, userID string) (*Session, error) {
	unlock := m.lock(userID)
	defer unlock()
	return m.load(ctx, userID)
}

// Reset starts a new interview for the user and returns the session as it
// was before the reset.
func (m *Manager) Reset(ctx context.Context, userID string) (previous *Session, err error) {
	err = m.Update(ctx, userID, func(s *Session) error {
		previous = s.Clone()
		s.Reset()
		s.LastActivity = time.Now().UTC()
		return nil
	})
	return previous, err
}

// ManualVitals returns the readings the user entered by hand.
func (m *Manager) ManualVitals(ctx context.Context, userID string) (biometrics.ManualVitals, error) {
	s, err := m.Get(ctx, userID)
	if err != nil {
		return biometrics.ManualVitals{}, err
	}
	return s.ManualVitals, nil
}

// ReportActive refreshes the active-sessions gauge every interval until
// ctx is done. Sessions idle for longer than window are not counted.
func (m *Manager) ReportActive(ctx context.Context, interval, window time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := m.store.CountActive(ctx, time.Now().Add(-window))
		if err != nil && ctx.Err() == nil {
			m.logger.Warn("failed to count active sessions", zap.Error(err))
		} else if err == nil {
			metrics.SetSessionsActive(n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
