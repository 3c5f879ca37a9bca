package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"app/internal/config"

	"cloud.google.com/go/pubsub"
)

// Publisher defines an interface for publishing change events.
type Publisher interface {
	PublishChange(ctx context.Context, kind Kind, userID string) error
}

// PubSubPublisher publishes change events through Google Pub/Sub so every
// running API instance can feed its connected dashboards.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  string
}

// NewPublisher creates a new PubSubPublisher using the GCP project from config.
func NewPublisher(ctx context.Context, cfg *config.Config) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.GCPProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &PubSubPublisher{client: client, topic: cfg.ChangeEventTopic}, nil
}

// PublishChange sends one change event to the configured topic.
func (p *PubSubPublisher) PublishChange(ctx context.Context, kind Kind, userID string) error {
	payload, err := json.Marshal(Event{Kind: kind, UserID: userID, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	t := p.client.Topic(p.topic)
	result := t.Publish(ctx, &pubsub.Message{Data: payload})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish change event to topic %s: %w", p.topic, err)
	}
	return nil
}

// Close releases the underlying Pub/Sub client.
func (p *PubSubPublisher) Close() error {
	return p.client.Close()
}
