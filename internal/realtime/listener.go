package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"app/internal/config"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// Listener pulls change events from the Pub/Sub subscription and feeds the
// in-process hub. One listener runs per API instance.
type Listener struct {
	client       *pubsub.Client
	subscription string
	hub          *Hub
	logger       zerolog.Logger
}

// NewListener creates a Listener for the configured subscription.
func NewListener(ctx context.Context, cfg *config.Config, hub *Hub, logger zerolog.Logger) (*Listener, error) {
	client, err := pubsub.NewClient(ctx, cfg.GCPProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &Listener{
		client:       client,
		subscription: cfg.ChangeEventSubscription,
		hub:          hub,
		logger:       logger.With().Str("service", "RealtimeListener").Logger(),
	}, nil
}

// Run blocks receiving change events until the context is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	sub := l.client.Subscription(l.subscription)
	err := sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		var ev Event
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			l.logger.Error().Err(err).Msg("Failed to unmarshal change event; dropping message")
			m.Ack()
			return
		}
		l.hub.Broadcast(ev)
		m.Ack()
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("receiving change events from %s: %w", l.subscription, err)
	}
	return nil
}

// Close releases the underlying Pub/Sub client.
func (l *Listener) Close() error {
	return l.client.Close()
}
