package port

import (
	"context"
	"ion-upload/internal/core/domain"
)

// EventConsumer is an interface to define an event consumer (kafka, nats, ...)
type EventConsumer interface {
	Subscribe(ctx context.Context, handler MessageService) error
	Close() error
}

// MessageService is an interface to define message handling
type MessageService interface {
	HandleMessage(ctx context.Context, data []byte) error
}

// EventPublisher announces upload session lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, event domain.SessionEvent) error
}
