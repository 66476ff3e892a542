package cleanup

import (
	"context"
	"ion-upload/internal/core/domain"
	"ion-upload/internal/core/port"
	"log/slog"
)

type cleanupService struct {
	store     port.UploadSessionStore
	storage   port.MultipartStorage
	publisher port.EventPublisher
	logger    *slog.Logger
}

// NewCleanupService creates a new cleanup service. publisher may be nil.
func NewCleanupService(store port.UploadSessionStore, storage port.MultipartStorage, publisher port.EventPublisher, logger *slog.Logger) port.CleanupService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &cleanupService{
		store:     store,
		storage:   storage,
		publisher: publisher,
		logger:    logger,
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.SessionEvent) error { return nil }
