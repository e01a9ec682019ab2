package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/healthsync/symptom-triage/internal/shared/config"
	"go.uber.org/zap"
)

// KurrentPublisher appends events to KurrentDB, one stream per interview.
type KurrentPublisher struct {
	db     *esdb.Client
	logger *zap.Logger
}

// NewKurrentPublisher connects to KurrentDB and verifies the connection.
func NewKurrentPublisher(ctx context.Context, cfg config.KurrentDBConfig, logger *zap.Logger) (*KurrentPublisher, error) {
	settings, err := esdb.ParseConnectionString(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	db, err := esdb.NewClient(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	p := &KurrentPublisher{db: db, logger: logger}
	if err := p.Health(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("connected to KurrentDB", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))
	return p, nil
}

// Publish appends each event to its interview stream.
func (p *KurrentPublisher) Publish(ctx context.Context, events ...Event) error {
	for _, event := range events {
		data, err := toEventData(event)
		if err != nil {
			return err
		}

		_, err = p.db.AppendToStream(ctx, event.Stream(), esdb.AppendToStreamOptions{
			ExpectedRevision: esdb.Any{},
		}, data)
		if err != nil {
			return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
		}
	}
	return nil
}

// Health verifies the connection by reading the stream index.
func (p *KurrentPublisher) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	stream, err := p.db.ReadStream(ctx, "$streams", esdb.ReadStreamOptions{
		From:      esdb.Start{},
		Direction: esdb.Forwards,
	}, 1)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	stream.Close()
	return nil
}

func (p *KurrentPublisher) Close() error {
	return p.db.Close()
}

// toEventData encodes the event body and keeps the user id in metadata.
func toEventData(e Event) (esdb.EventData, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return esdb.EventData{}, fmt.Errorf("failed to marshal event data: %w", err)
	}

	metadata, err := json.Marshal(map[string]string{
		"user_id":     e.UserID,
		"occurred_at": e.OccurredAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return esdb.EventData{}, fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	return esdb.EventData{
		EventID:     e.ID,
		EventType:   e.Type,
		ContentType: esdb.ContentTypeJson,
		Data:        data,
		Metadata:    metadata,
	}, nil
}
