// Package events publishes interview lifecycle events.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types
const (
	InterviewStarted   = "interview.started"
	InterviewCompleted = "interview.completed"
	InterviewReset     = "interview.reset"
)

// Event is one lifecycle fact about an interview.
type Event struct {
	ID          uuid.UUID      `json:"id"`
	Type        string         `json:"type"`
	InterviewID string         `json:"interview_id"`
	UserID      string         `json:"user_id"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Data        map[string]any `json:"data,omitempty"`
}

// New builds an event stamped with a fresh id and the current time.
func New(eventType, interviewID, userID string, data map[string]any) Event {
	return Event{
		ID:          uuid.New(),
		Type:        eventType,
		InterviewID: interviewID,
		UserID:      userID,
		OccurredAt:  time.Now().UTC(),
		Data:        data,
	}
}

// Stream is the per-interview stream the event is appended to.
func (e Event) Stream() string {
	return "interview-" + e.InterviewID
}

// Publisher delivers events to a durable log.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Event) error { return nil }
func (NopPublisher) Close() error                            { return nil }

// BestEffort wraps a publisher so that failures are logged instead of
// returned. Interviews never fail because the event log is down.
type BestEffort struct {
	next    Publisher
	timeout time.Duration
	logger  *zap.Logger
}

// NewBestEffort wraps next. Each Publish is bounded by timeout.
func NewBestEffort(next Publisher, timeout time.Duration, logger *zap.Logger) *BestEffort {
	if next == nil {
		next = NopPublisher{}
	}
	return &BestEffort{next: next, timeout: timeout, logger: logger}
}

func (b *BestEffort) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	if err := b.next.Publish(ctx, events...); err != nil {
		b.logger.Warn("failed to publish interview events",
			zap.String("type", events[0].Type),
			zap.String("interview_id", events[0].InterviewID),
			zap.Int("count", len(events)),
			zap.Error(err))
	}
	return nil
}

func (b *BestEffort) Close() error {
	return b.next.Close()
}
