package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"ion-upload/internal/config"
	"ion-upload/internal/core/domain"
	"ion-upload/internal/core/port"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher announces session lifecycle events on a JetStream subject
type Publisher struct {
	logger  *slog.Logger
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewNATSPublisher connects to NATS and makes sure the events stream exists
func NewNATSPublisher(ctx context.Context, cfg config.NATSConfig, logger *slog.Logger) (*Publisher, error) {
	conn, js, err := connect(cfg, cfg.ConsumerName+"-publisher", logger)
	if err != nil {
		return nil, err
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.EventsStream,
		Subjects: []string{cfg.EventsSubject},
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create stream %s: %w", cfg.EventsStream, err)
	}

	return &Publisher{
		logger:  logger,
		conn:    conn,
		js:      js,
		subject: cfg.EventsSubject,
	}, nil
}

var _ port.EventPublisher = (*Publisher)(nil)

// Publish sends event as JSON and waits for the stream acknowledgement.
// Messages are keyed by session and event type so the stream drops duplicates.
func (p *Publisher) Publish(ctx context.Context, event domain.SessionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msgID := event.SessionID.String() + ":" + string(event.Type)
	ack, err := p.js.Publish(ctx, p.subject, data, jetstream.WithMsgID(msgID))
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}

	p.logger.Debug("session event published",
		slog.String("type", string(event.Type)),
		slog.String("sessionID", event.SessionID.String()),
		slog.Uint64("seq", ack.Sequence))
	return nil
}

// Close drains pending publishes and closes the connection
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
