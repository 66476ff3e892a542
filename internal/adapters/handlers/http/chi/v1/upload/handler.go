package upload

import (
	"ion-upload/internal/core/port"
	"log/slog"

	"github.com/go-chi/chi/v5"
)

// HandlerV1 is the handler for v1 upload routes
type HandlerV1 struct {
	uploadService port.MultipartService
	logger        *slog.Logger
}

// NewUploadHandlerV1 creates HandlerV1
func NewUploadHandlerV1(service port.MultipartService, logger *slog.Logger) *HandlerV1 {
	return &HandlerV1{
		uploadService: service,
		logger:        logger,
	}
}

// Routes exposes handler routes
func (h *HandlerV1) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/", h.InitiateUploadV1)
	router.Get("/{sessionID}", h.GetSessionV1)
	router.Delete("/{sessionID}", h.AbortUploadV1)
	router.Get("/{sessionID}/parts/{partNumber}/url", h.GetPartUploadURLV1)
	router.Post("/{sessionID}/parts/urls", h.GetPartUploadURLsV1)
	router.Put("/{sessionID}/parts/{partNumber}", h.AcknowledgePartV1)
	router.Post("/{sessionID}/complete", h.CompleteUploadV1)

	return router
}
