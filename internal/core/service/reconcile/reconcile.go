package reconcile

import (
	"ion-upload/internal/core/port"
	"log/slog"
	"time"
)

type reconcileService struct {
	store     port.UploadSessionStore
	publisher port.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewReconcileService creates the handler of bucket notifications. It closes
// sessions whose object was assembled without the coordinator being told.
func NewReconcileService(store port.UploadSessionStore, publisher port.EventPublisher, logger *slog.Logger) port.MessageService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &reconcileService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}
